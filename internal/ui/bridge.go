package ui

// Bridge is an io.Writer that relays text into the form's console on the
// loop goroutine. Writes are relayed in call order and never block on the
// loop, so it can stand in for stdout and stderr of a background run.
type Bridge struct {
	form *Form
}

// NewBridge creates a Bridge feeding form.
func NewBridge(form *Form) *Bridge {
	return &Bridge{form: form}
}

// Write copies p and queues it for the console.
func (b *Bridge) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b.form.AppendLog(string(p))
	return len(p), nil
}

// Flush is a no-op; every Write is already queued.
func (b *Bridge) Flush() error {
	return nil
}

// Sync is a no-op so a Bridge can back a zap core.
func (b *Bridge) Sync() error {
	return nil
}
