package input

import (
	"bufio"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"snapsync/pkg/proto"
)

// Keyboard turns terminal key presses into intents. Terminals report no key
// releases, so a press stays active until the next tick samples it.
type Keyboard struct {
	mu      sync.Mutex
	pressed Set
	done    chan struct{}
	once    sync.Once

	fd       int
	oldState *term.State
}

// NewKeyboard reads key bytes from r until EOF or a quit key (q, Ctrl+C).
func NewKeyboard(r io.Reader) *Keyboard {
	k := &Keyboard{
		pressed: make(Set),
		done:    make(chan struct{}),
	}
	go k.readLoop(bufio.NewReader(r))
	return k
}

// OpenTerminal switches f to raw mode so keys arrive without Enter.
// Restore must be called before the process exits.
func OpenTerminal(f *os.File) (*Keyboard, error) {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	k := NewKeyboard(f)
	k.fd, k.oldState = fd, oldState
	return k, nil
}

func (k *Keyboard) Restore() error {
	if k.oldState == nil {
		return nil
	}
	return term.Restore(k.fd, k.oldState)
}

// Done is closed when the user asked to quit or the input ended.
func (k *Keyboard) Done() <-chan struct{} { return k.done }

func (k *Keyboard) Active(c proto.Command) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pressed[c]
}

// Drain hands over the latched presses and starts a fresh latch.
func (k *Keyboard) Drain() Set {
	k.mu.Lock()
	defer k.mu.Unlock()
	pressed := k.pressed
	k.pressed = make(Set)
	return pressed
}

func (k *Keyboard) press(c proto.Command) {
	k.mu.Lock()
	k.pressed[c] = true
	k.mu.Unlock()
}

func (k *Keyboard) quit() {
	k.once.Do(func() { close(k.done) })
}

func (k *Keyboard) readLoop(r *bufio.Reader) {
	defer k.quit()
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case 'a', 'A':
			k.press(proto.MoveLeft)
		case 'd', 'D':
			k.press(proto.MoveRight)
		case 'w', 'W', ' ':
			k.press(proto.Jump)
		case 'q', 'Q', 3:
			return
		case 0x1b:
			// arrow keys: ESC [ A..D
			if next, err := r.Peek(2); err == nil && next[0] == '[' {
				switch next[1] {
				case 'A':
					k.press(proto.Jump)
				case 'C':
					k.press(proto.MoveRight)
				case 'D':
					k.press(proto.MoveLeft)
				}
				r.Discard(2)
			}
		}
	}
}
