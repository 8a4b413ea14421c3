package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComposer() *Composer {
	return NewComposer(testJenkinsURL, "", []string{"Predictably"})
}

func TestStatusCommentPipeline(t *testing.T) {
	body, err := testComposer().StatusComment("22", "https://ci.cfengine.com/job/pr-pipeline/22", "")
	require.NoError(t, err)

	assert.Equal(t, "Predictably, I triggered a build:\n\n"+
		"[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=pr-pipeline&build=22)](https://ci.cfengine.com//job/pr-pipeline/22/)\n\n"+
		"**Jenkins:** https://ci.cfengine.com/job/pr-pipeline/22\n\n"+
		"**Packages:** http://buildcache.cfengine.com/packages/testing-pr/jenkins-pr-pipeline-22/", body)
}

func TestStatusCommentBadgeText(t *testing.T) {
	body, err := testComposer().StatusComment("22", "https://ci.cfengine.com/job/pr-pipeline/22", " [NO TESTS]")
	require.NoError(t, err)

	assert.Equal(t, "Predictably, I triggered a build:\n\n"+
		"[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=pr-pipeline&build=22)](https://ci.cfengine.com//job/pr-pipeline/22/)\n\n"+
		" [NO TESTS]\n\n"+
		"**Jenkins:** https://ci.cfengine.com/job/pr-pipeline/22\n\n"+
		"**Packages:** http://buildcache.cfengine.com/packages/testing-pr/jenkins-pr-pipeline-22/", body)
}

func TestStatusCommentDocs(t *testing.T) {
	body, err := testComposer().StatusComment("22", "https://ci.cfengine.com/job/build-and-deploy-docs-3.18/22", "(with exotics) [NO TESTS]")
	require.NoError(t, err)

	assert.Equal(t, "Predictably, I triggered a build:\n\n"+
		"[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=build-and-deploy-docs-3.18&build=22)](https://ci.cfengine.com//job/build-and-deploy-docs-3.18/22/)\n\n"+
		"(with exotics) [NO TESTS]\n\n"+
		"**Jenkins:** https://ci.cfengine.com/job/build-and-deploy-docs-3.18/22\n\n"+
		"**Packages:** http://buildcache.cfengine.com/packages/testing-pr/jenkins-build-and-deploy-docs-3.18-22/\n\n"+
		"**Documentation:** http://buildcache.cfengine.com/packages/build-documentation-pr/jenkins-build-and-deploy-docs-3.18-22/output/_site/", body)
}

func TestStatusCommentFastDocs(t *testing.T) {
	body, err := testComposer().StatusComment("22", "https://ci.cfengine.com/job/fast-build-and-deploy-docs-3.18/22", "")
	require.NoError(t, err)

	assert.Equal(t, "Predictably, I triggered a build:\n\n"+
		"[![Build Status](https://ci.cfengine.com//buildStatus/icon?job=fast-build-and-deploy-docs-3.18&build=22)](https://ci.cfengine.com//job/fast-build-and-deploy-docs-3.18/22/)\n\n"+
		"**Jenkins:** https://ci.cfengine.com/job/fast-build-and-deploy-docs-3.18/22\n\n"+
		"**Documentation:** http://buildcache.cfengine.com/packages/build-documentation-pr/jenkins-fast-build-and-deploy-docs-3.18-22/output/_site/", body)
}

func TestStatusCommentForeignURL(t *testing.T) {
	_, err := testComposer().StatusComment("22", "https://other.example.com/job/pr-pipeline/22", "")
	assert.Error(t, err)

	_, err = testComposer().StatusComment("22", "https://ci.cfengine.com/job/PR_Pipeline/22", "")
	assert.Error(t, err)
}

func TestComposerDefaults(t *testing.T) {
	c := NewComposer(testJenkinsURL, "https://cache.example.com/", nil)
	assert.Equal(t, "https://cache.example.com", c.BuildCacheURL)
	assert.Contains(t, DefaultGreetings, c.Greeting())
}
