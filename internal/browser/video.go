package browser

import "net/url"

const watchURL = "https://www.youtube.com/watch"

// VideoURL builds the watch page for a video id, optionally inside a playlist.
func VideoURL(id, list string) string {
	u := watchURL + "?v=" + url.QueryEscape(id)
	if list != "" {
		u += "&list=" + url.QueryEscape(list)
	}
	return u
}
