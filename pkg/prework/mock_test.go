package prework

// mockLogger is a recording implementation of logger.Logger for testing
type mockLogger struct {
	tableCalls []tableCall
	errorCalls []errorCall
	debugCalls []string
}

type tableCall struct {
	path    string
	mode    string
	entries int
}

type errorCall struct {
	operation string
	path      string
	err       error
}

func (m *mockLogger) Link(source, target string) {}

func (m *mockLogger) Replace(source, target string) {}

func (m *mockLogger) Present(target string) {}

func (m *mockLogger) Skip(source, reason string) {}

func (m *mockLogger) Table(path, mode string, entries int) {
	m.tableCalls = append(m.tableCalls, tableCall{path, mode, entries})
}

func (m *mockLogger) Error(operation, path string, err error) {
	m.errorCalls = append(m.errorCalls, errorCall{operation, path, err})
}

func (m *mockLogger) Debug(message string) {
	m.debugCalls = append(m.debugCalls, message)
}
