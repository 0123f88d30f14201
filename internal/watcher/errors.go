package watcher

import "errors"

var errMissingHost = errors.New("url has no scheme or host")
