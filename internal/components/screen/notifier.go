package screen

import (
	"fmt"
	"io"
	"sync"
)

// WriterNotifier prints each message on its own line
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

func (n *WriterNotifier) Show(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, message)
}
