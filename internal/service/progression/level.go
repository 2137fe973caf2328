package progression

import "github.com/yourusername/challengequest-api/internal/domain/entity"

// LevelFor - единственная функция расчета уровня по XP.
//
// Берется активный диапазон, в границы которого [MinXP, MaxXP] попадает xp.
// Если xp попал в разрыв между диапазонами, берется ближайший диапазон ниже (наибольший MinXP <= xp).
// Если активных диапазонов нет, уровень считается по плоскому правилу xp/xpPerLevel + 1.
// Результат не бывает меньше 1.
func LevelFor(bands []entity.Level, xp, xpPerLevel int) int {
	if xp < 0 {
		xp = 0
	}

	band, hasActive := currentBand(bands, xp)
	if !hasActive {
		if xpPerLevel <= 0 {
			xpPerLevel = DefaultXPPerLevel
		}
		return xp/xpPerLevel + 1
	}
	if band == nil || band.Number < 1 {
		return 1
	}
	return band.Number
}

// currentBand находит диапазон для xp среди активных.
// Второе значение false, если активных диапазонов нет совсем.
func currentBand(bands []entity.Level, xp int) (*entity.Level, bool) {
	var containing, below *entity.Level
	hasActive := false
	for i := range bands {
		b := &bands[i]
		if !b.IsActive {
			continue
		}
		hasActive = true
		if b.Contains(xp) {
			if containing == nil || b.Number > containing.Number {
				containing = b
			}
			continue
		}
		if b.MinXP <= xp && (below == nil || b.MinXP > below.MinXP) {
			below = b
		}
	}
	if containing != nil {
		return containing, hasActive
	}
	return below, hasActive
}

// NextBand возвращает ближайший активный диапазон с MinXP > xp, либо nil
func NextBand(bands []entity.Level, xp int) *entity.Level {
	var next *entity.Level
	for i := range bands {
		b := &bands[i]
		if !b.IsActive || b.MinXP <= xp {
			continue
		}
		if next == nil || b.MinXP < next.MinXP {
			next = b
		}
	}
	return next
}

// NextLevelXP возвращает порог XP следующего уровня.
// Без таблицы уровней порог считается по плоскому правилу; 0 - следующего уровня нет.
func NextLevelXP(bands []entity.Level, xp, xpPerLevel int) int {
	hasActive := false
	for i := range bands {
		if bands[i].IsActive {
			hasActive = true
			break
		}
	}
	if !hasActive {
		if xpPerLevel <= 0 {
			xpPerLevel = DefaultXPPerLevel
		}
		return (xp/xpPerLevel + 1) * xpPerLevel
	}
	if next := NextBand(bands, xp); next != nil {
		return next.MinXP
	}
	return 0
}

// LevelFloorXP возвращает нижнюю границу XP уровня, который LevelFor выдает для xp
func LevelFloorXP(bands []entity.Level, xp, xpPerLevel int) int {
	if xp < 0 {
		xp = 0
	}
	band, hasActive := currentBand(bands, xp)
	if !hasActive {
		if xpPerLevel <= 0 {
			xpPerLevel = DefaultXPPerLevel
		}
		return (xp / xpPerLevel) * xpPerLevel
	}
	if band == nil {
		return 0
	}
	return band.MinXP
}
