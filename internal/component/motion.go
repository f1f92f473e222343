package component

// Position is an entity's location in world space.
type Position struct {
	X, Y, Z float64
}

// Velocity is applied to Position by MovementSystem, in blocks per second.
type Velocity struct {
	X, Y, Z float64
}
