package models

// Wind is one of the four round winds.
type Wind string

const (
	WindEast  Wind = "East"
	WindSouth Wind = "South"
	WindWest  Wind = "West"
	WindNorth Wind = "North"
)

// WindCycle is the canonical wind order. Seat winds and round-wind advancement
// both index into this cycle.
var WindCycle = [4]Wind{WindEast, WindSouth, WindWest, WindNorth}

// Next returns the wind that follows w in the cycle. Unknown values reset to East.
func (w Wind) Next() Wind {
	for i, v := range WindCycle {
		if v == w {
			return WindCycle[(i+1)%4]
		}
	}
	return WindEast
}
