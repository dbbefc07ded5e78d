package domain

type AvailabilityBreakdown struct {
	TwoWheelers  int `json:"Two"`
	FourWheelers int `json:"Four"`
	Available    int `json:"Available"`
}

type RevenueSummary struct {
	Daily   float64 `json:"daily"`
	Monthly float64 `json:"monthly"`
}
