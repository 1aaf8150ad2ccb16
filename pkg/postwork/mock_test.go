package postwork

// mockLogger is a recording implementation of logger.Logger for testing
type mockLogger struct {
	linkCalls    []linkCall
	replaceCalls []linkCall
	presentCalls []string
	skipCalls    []skipCall
	errorCalls   []errorCall
	debugCalls   []string
}

type linkCall struct {
	source string
	target string
}

type skipCall struct {
	source string
	reason string
}

type errorCall struct {
	operation string
	path      string
	err       error
}

func (m *mockLogger) Link(source, target string) {
	m.linkCalls = append(m.linkCalls, linkCall{source, target})
}

func (m *mockLogger) Replace(source, target string) {
	m.replaceCalls = append(m.replaceCalls, linkCall{source, target})
}

func (m *mockLogger) Present(target string) {
	m.presentCalls = append(m.presentCalls, target)
}

func (m *mockLogger) Skip(source, reason string) {
	m.skipCalls = append(m.skipCalls, skipCall{source, reason})
}

func (m *mockLogger) Table(path, mode string, entries int) {}

func (m *mockLogger) Error(operation, path string, err error) {
	m.errorCalls = append(m.errorCalls, errorCall{operation, path, err})
}

func (m *mockLogger) Debug(message string) {
	m.debugCalls = append(m.debugCalls, message)
}
