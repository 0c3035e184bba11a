package interfaces

import "errors"

// ErrOAuthOnly is returned by Connect on vendors that can only be linked
// through the browser OAuth flow.
var ErrOAuthOnly = errors.New("vendor connects through the oauth flow")
