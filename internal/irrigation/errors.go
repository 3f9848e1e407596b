package irrigation

import "errors"

var (
	ErrInvalidForecastWindow       = errors.New("forecast window is empty")
	ErrInvalidIrrigationParameters = errors.New("invalid irrigation parameters")
)
