package postgres

// Защита на уровне хранилища: репозитории не доверяют пришедшим limit/offset.

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func NormalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
