package yumi

// ZoneValues gives the (pzone_tcp, pzone_ori, zone_ori) triple RAPID uses
// for each named zone setting. "fine" point-stops exactly; its triple is
// unused by the controller but kept at zero for clarity.
var ZoneValues = map[string][3]float64{
	"fine": {0, 0, 0},
	"z0":   {0.3, 0.3, 0.03},
	"z1":   {1, 1, 0.1},
	"z5":   {5, 8, 0.8},
	"z10":  {10, 15, 1.5},
	"z15":  {15, 23, 2.3},
	"z20":  {20, 30, 3},
	"z30":  {30, 45, 4.5},
	"z50":  {50, 75, 7.5},
	"z100": {100, 150, 15},
	"z200": {200, 300, 30},
}

// zoneData resolves a named zone to its (point_motion, values) pair. The
// "fine" zone runs with point_motion=1 (point-to-point stop); every other
// named zone runs with point_motion=0 (path zone).
func zoneData(name string) (pointMotion int, values [3]float64, ok bool) {
	values, ok = ZoneValues[name]
	if !ok {
		return 0, [3]float64{}, false
	}
	if name == "fine" {
		return 1, values, true
	}
	return 0, values, true
}

// constructSpeedData builds the (tra, rot, tra, rot) tuple RAPID expects
// for SetSpeed, given translational speed in mm/s and rotational speed in
// degrees/s.
func constructSpeedData(tra, rot float64) [4]float64 {
	return [4]float64{tra, rot, tra, rot}
}

// speedForN returns the speed data RAPID would use for its named vN speed
// (e.g. v100), holding rotational speed fixed at 500 deg/s as the
// reference controller does.
func speedForN(n int) [4]float64 {
	return constructSpeedData(float64(n), 500)
}
