package email

// Provider определяет интерфейс для отправки email.
// Отправка всегда best-effort: вызывающий код логирует ошибку
// и никогда не роняет транзакцию из-за письма.
type Provider interface {
	// Send отправляет простое email сообщение
	Send(email *Email) error

	// SendVerification отправляет письмо верификации
	SendVerification(to, username, token string) error

	// SendSubscriptionStatus уведомляет о смене статуса подписки
	SendSubscriptionStatus(to, plan, status, notes string) error
}
