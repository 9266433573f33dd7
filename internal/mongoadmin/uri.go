package mongoadmin

import (
	"net/url"
	"strings"
)

// IsMongoURI reports whether addr is a MongoDB connection string.
func IsMongoURI(addr string) bool {
	return strings.HasPrefix(addr, "mongodb://") || strings.HasPrefix(addr, "mongodb+srv://")
}

// redact hides the password of a connection string for logs and errors.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
