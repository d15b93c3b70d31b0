package iodriver

import (
	"sync"
)

type bufferKey struct {
	game    uint64
	entity  string
	channel string
}

// LocalOutput is the in-process, single-mutex output driver: push appends,
// pop drains FIFO.
type LocalOutput struct {
	mu      sync.Mutex
	buffers map[bufferKey][]Message
	seq     map[bufferKey]uint64
}

// NewLocalOutput returns an empty local output driver.
func NewLocalOutput() *LocalOutput {
	return &LocalOutput{
		buffers: make(map[bufferKey][]Message),
		seq:     make(map[bufferKey]uint64),
	}
}

func (l *LocalOutput) Name() string { return "local" }

func (l *LocalOutput) Push(game uint64, entity, channel string, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := bufferKey{game, entity, channel}
	msg.Order = l.seq[k]
	l.seq[k]++
	l.buffers[k] = append(l.buffers[k], msg)
	return nil
}

func (l *LocalOutput) Size(game uint64, entity, channel string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffers[bufferKey{game, entity, channel}]), nil
}

func (l *LocalOutput) Pop(game uint64, entity, channel string) (Message, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := bufferKey{game, entity, channel}
	q := l.buffers[k]
	if len(q) == 0 {
		return Message{}, false, nil
	}
	msg := q[0]
	l.buffers[k] = q[1:]
	return msg, true, nil
}

func (l *LocalOutput) Destroy(game uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.buffers {
		if k.game == game {
			delete(l.buffers, k)
			delete(l.seq, k)
		}
	}
}

type inputKey struct {
	game   uint64
	entity string
}

// LocalInput is the in-process at-most-one-pending-command input driver.
type LocalInput struct {
	mu      sync.Mutex
	pending map[inputKey]string
}

// NewLocalInput returns an empty local input driver.
func NewLocalInput() *LocalInput {
	return &LocalInput{pending: make(map[inputKey]string)}
}

func (l *LocalInput) Name() string { return "local" }

func (l *LocalInput) IsSet(game uint64, entity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[inputKey{game, entity}]
	return ok, nil
}

func (l *LocalInput) Set(game uint64, entity, command string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[inputKey{game, entity}] = command
	return nil
}

func (l *LocalInput) Consume(game uint64, entity string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := inputKey{game, entity}
	cmd, ok := l.pending[k]
	if !ok {
		return "", false, nil
	}
	delete(l.pending, k)
	return cmd, true, nil
}

func (l *LocalInput) Destroy(game uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.pending {
		if k.game == game {
			delete(l.pending, k)
		}
	}
}
