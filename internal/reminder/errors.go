package reminder

import "fmt"

// StoreError wraps an underlying storage failure with the attempted
// operation's context. Callers decide whether to propagate or log-and-continue.
type StoreError struct {
	Op      string
	GuildID string
	Err     error
}

func (e *StoreError) Error() string {
	if e.GuildID != "" {
		return fmt.Sprintf("reminder store: %s (guild %s): %v", e.Op, e.GuildID, e.Err)
	}
	return fmt.Sprintf("reminder store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, guildID string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, GuildID: guildID, Err: err}
}
