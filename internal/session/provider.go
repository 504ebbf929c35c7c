package session

import "errors"

var (
	ErrEmptyToken   = errors.New("empty token")
	ErrTokenExpired = errors.New("token expired")
)

var _ Provider = (*Store)(nil)

// Provider is the source of the bearer credential. An empty credential means
// nobody is logged in; an expired session reads as empty.
type Provider interface {
	Credential() string
	// Subscribe returns a channel that receives the credential after every
	// change, and a func that stops the subscription and closes the channel.
	Subscribe() (<-chan string, func())
}
