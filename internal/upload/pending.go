package upload

import "context"

// Pending is the outcome of one upload: a result URL or an error.
type Pending struct {
	done      chan struct{}
	resultURL string
	err       error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(resultURL string, err error) {
	p.resultURL = resultURL
	p.err = err
	close(p.done)
}

// Done is closed once the upload has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the upload finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.resultURL, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
