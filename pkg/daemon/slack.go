package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"

	slackapi "github.com/slack-go/slack"

	"github.com/cfengine/cf-bottom/pkg/logging"
	"github.com/cfengine/cf-bottom/pkg/slack"
)

const maxEventSize = 1 << 20

func (d *Daemon) slackHandler() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.S().With("ruid", r.Header.Get("X-Request-ID"))

		log.Debugw("handle request", "command", "slack")
		defer log.Debugw("request handled", "command", "slack")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if secret := d.opts.SigningSecret; secret != "" {
			sv, err := slackapi.NewSecretsVerifier(r.Header, secret)
			if err == nil {
				_, _ = sv.Write(body)
				err = sv.Ensure()
			}
			if err != nil {
				log.Warnw("rejected slack request", "err", err)
				writeError(w, http.StatusUnauthorized, err)
				return
			}
		}

		in, err := slack.ParseEvent(body, d.opts.ReadToken, d.opts.BotID)
		switch {
		case errors.Is(err, slack.ErrUnauthorized):
			log.Warnw("unauthorized slack event")
			writeError(w, http.StatusUnauthorized, err)
			return
		case errors.Is(err, slack.ErrIgnored):
			log.Debugw("ignoring slack event", "reason", err)
			w.WriteHeader(http.StatusOK)
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if in.Challenge != "" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(in.Challenge))
			return
		}

		// Slack expects an answer within seconds; commands may take longer.
		d.background(func(ctx context.Context) {
			if err := d.opts.Dispatcher.Dispatch(ctx, in.Conversation, in.Text); err != nil {
				log.Warnw("failed to reply on slack", "err", err)
			}
		})
		w.WriteHeader(http.StatusOK)
	}
}
