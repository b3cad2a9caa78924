package session

// enqueue appends op to the negotiation queue. It reports false once the
// session is closed.
func (s *Session) enqueue(op func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.ops = append(s.ops, op)
	s.mu.Unlock()

	s.signal()
	return true
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run executes queued ops in order until the session closes.
func (s *Session) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.closed || !s.ready || len(s.ops) == 0 {
				s.mu.Unlock()
				break
			}
			op := s.ops[0]
			s.ops[0] = nil
			s.ops = s.ops[1:]
			s.mu.Unlock()

			op()
		}
	}
}

// flush waits until every op queued before it has run. It returns early if
// the session closes.
func (s *Session) flush() {
	ran := make(chan struct{})
	if !s.enqueue(func() { close(ran) }) {
		return
	}
	select {
	case <-ran:
	case <-s.done:
	}
}
