package locker

func (m *Memory) Size() int { return m.size() }
