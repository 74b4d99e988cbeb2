// README: Geographic coordinate value object.
package types

type Point struct {
	Lat float64
	Lng float64
}
