package framer

import "fmt"

type ServerClosedError struct {
	Reason string
}

func (e *ServerClosedError) Error() string {
	return fmt.Sprintf("server closed the connection with reason: %s", e.Reason)
}

func (e *ServerClosedError) Unwrap() error { return nil }
