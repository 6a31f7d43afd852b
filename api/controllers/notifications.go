package controllers

import (
	"net/http"

	"github.com/angelmondragon/bazarche-storefront/api/responses"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
)

// NotificationsDrain hands the session's pending notices to the UI once.
// ?peek=true leaves them queued.
func NotificationsDrain(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sf, ok := sessionStorefront(w, r, logg)
		if !ok {
			return
		}
		var notices []notify.Notice
		if r.URL.Query().Get("peek") == "true" {
			notices = sf.Inbox.Peek()
		} else {
			notices = sf.Inbox.Drain()
		}
		if notices == nil {
			notices = []notify.Notice{}
		}
		responses.WriteSuccess(w, notices)
	}
}
