package option

import "errors"

var ErrInvalidPageToken = errors.New("invalid_page_token")
