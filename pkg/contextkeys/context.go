package contextkeys

// Используем кастомный тип, чтобы избежать коллизий
type contextKey string

// DBContextKey - это ключ, по которому мы храним *gorm.DB в context.
// Тесты подкладывают сюда транзакцию вместо пула.
const DBContextKey = contextKey("db")
