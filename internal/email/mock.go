package email

import "sync"

// MockProvider - заглушка для тестов и локальной разработки.
// Запоминает отправленные письма вместо реальной отправки.
type MockProvider struct {
	mu   sync.Mutex
	Sent []Email

	// FailNext заставляет следующую отправку вернуть ошибку
	FailNext error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Send(email *Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	m.Sent = append(m.Sent, *email)
	return nil
}

func (m *MockProvider) SendVerification(to, username, token string) error {
	return m.Send(&Email{
		To:      []string{to},
		Subject: "verification",
		Body:    token,
	})
}

func (m *MockProvider) SendSubscriptionStatus(to, plan, status, notes string) error {
	return m.Send(&Email{
		To:      []string{to},
		Subject: "subscription_status",
		Body:    plan + " " + status,
	})
}

// SentCount возвращает число отправленных писем
func (m *MockProvider) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
