package feedback

import (
	"net/url"

	"github.com/Quisharoo/manager-feedback-questions-sub000/capability"
)

// Link query parameters understood by the front-end.
const (
	linkParamSession    = "session"
	linkParamCapSession = "capsession"
)

// buildLinks renders the edit and view links for a session. Cap sessions use
// the "capsession" parameter so the front-end talks to /capsessions.
func buildLinks(base string, route Route, id, editKey, viewKey string) Links {
	param := linkParamSession
	if route == RouteCapSessions {
		param = linkParamCapSession
	}
	return Links{
		Edit: buildLink(base, param, id, editKey),
		View: buildLink(base, param, id, viewKey),
	}
}

func buildLink(base, param, id, key string) string {
	return base + "/?" + param + "=" + url.QueryEscape(id) + "&" + capability.QueryParam + "=" + url.QueryEscape(key)
}
