package progression

// Значения по умолчанию
const (
	DefaultXPPerLevel   = 1000
	DefaultRadiusMeters = 100.0
)

// Config содержит настройки движка прохождения челленджей
type Config struct {
	// RequireLocationProximity включает проверку расстояния до точки этапа
	RequireLocationProximity bool
	// DefaultRadiusMeters используется, если у этапа не задан радиус
	DefaultRadiusMeters float64
	// XPPerLevel - ширина уровня, когда таблица уровней пуста
	XPPerLevel int
	// MatchQRContent требует совпадения отсканированного содержимого с кодом этапа
	MatchQRContent bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		RequireLocationProximity: false,
		DefaultRadiusMeters:      DefaultRadiusMeters,
		XPPerLevel:               DefaultXPPerLevel,
		MatchQRContent:           false,
	}
}

func (c *Config) normalize() {
	if c.XPPerLevel <= 0 {
		c.XPPerLevel = DefaultXPPerLevel
	}
	if c.DefaultRadiusMeters <= 0 {
		c.DefaultRadiusMeters = DefaultRadiusMeters
	}
}
