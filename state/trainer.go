package state

import (
	"context"
	"sync"

	"github.com/chazu/scriptbridge/errs"
	"github.com/chazu/scriptbridge/value"
)

// DefaultBatchSize is used when NewTrainer is given a non-positive size.
const DefaultBatchSize = 10

const fitMethod = "fit"

// Trainer feeds rows to a state's fit method in batches. fit receives an
// Array of rows and may return a Map with "loss", "accuracy" and the
// serialized model under value.ModelField.
type Trainer struct {
	state     *State
	batchSize int

	mu       sync.Mutex
	buf      value.Array
	model    []byte
	hasModel bool
	batches  int
}

// NewTrainer wraps s.
func NewTrainer(s *State, batchSize int) *Trainer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Trainer{state: s, batchSize: batchSize}
}

// BatchSize returns the number of rows per fit call.
func (t *Trainer) BatchSize() int { return t.batchSize }

// Add buffers row and runs fit once a full batch has accumulated.
func (t *Trainer) Add(ctx context.Context, row value.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, row)
	if len(t.buf) < t.batchSize {
		return nil
	}
	return t.flush(ctx)
}

// Flush runs fit on whatever rows are buffered.
func (t *Trainer) Flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush(ctx)
}

func (t *Trainer) flush(ctx context.Context) error {
	if len(t.buf) == 0 {
		return nil
	}
	batch := t.buf
	t.buf = nil

	res, err := t.state.Call(ctx, fitMethod, batch)
	if err != nil {
		return err
	}
	t.batches++
	m, ok := res.(*value.Map)
	if !ok {
		return nil
	}
	n := float64(len(batch))
	if loss, ok := metric(m, "loss"); ok {
		log.Debugf("batch %d: loss %g", t.batches, loss/n)
	}
	if acc, ok := metric(m, "accuracy"); ok {
		log.Debugf("batch %d: accuracy %g", t.batches, acc/n)
	}
	blob, present, err := value.Opaque(m, value.ModelField)
	if err != nil {
		return errs.WithOp("trainer fit", err)
	}
	if present {
		t.model, t.hasModel = blob, true
	}
	return nil
}

func metric(m *value.Map, name string) (float64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	f, err := value.AsFloat(v)
	return f, err == nil
}

// Model returns the last model blob fit reported. ok is false until a fit
// result carried one; an empty blob with ok true means "no state yet".
func (t *Trainer) Model() (blob []byte, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model, t.hasModel
}

// Pending returns the number of buffered rows.
func (t *Trainer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buf)
}
