package surface

import "strings"

// Location is a named point of interest in the complex plane.
type Location struct {
	Name string
	X    float64
	Y    float64
}

// DefaultLocation is used when no location is configured.
var DefaultLocation = Location{Name: "Default point", X: -0.5, Y: 0}

// Locations is the catalogue of zoom targets.
var Locations = []Location{
	DefaultLocation,
	{Name: "Elephant Valley", X: -0.7453, Y: 0.1127},
	{Name: "Triple Spiral Valley", X: -0.743643887037151, Y: 0.13182590420533},
	{Name: "Double Spiral", X: -0.7269, Y: 0.1889},
	{Name: "Seahorse Valley", X: 0.3, Y: 0.0},
	{Name: "Needle", X: -0.1592, Y: 1.0317},
	{Name: "Satellite", X: -0.1011, Y: 0.9563},
	{Name: "Mini Spiral Cluster", X: -1.3107, Y: 0.0659},
	{Name: "Whirlpool Cluster", X: -0.77568377, Y: 0.13646737},
	{Name: "Tendril Canyon", X: -1.543689012, Y: 0.00005204},
	{Name: "Coral Branching", X: -1.05, Y: 0.266},
	{Name: "Far Tendril Island", X: -1.94006, Y: 0.0001},
	{Name: "Seahorse Tail", X: 0.27334, Y: 0.00742},
	{Name: "Necklace Cluster", X: -1.401155, Y: 0.0},
}

// LookupLocation resolves a catalogue entry by name, ignoring case.
func LookupLocation(name string) (Location, bool) {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return DefaultLocation, true
	}
	for _, loc := range Locations {
		if strings.EqualFold(loc.Name, needle) {
			return loc, true
		}
	}
	return Location{}, false
}
