package springopt

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/catalog-resolver/internal/model"
)

// ApplyModifications merges mods into spec. Scalars in Set overwrite known
// specification paths; unknown paths, or values that do not parse for
// their path, land in Additional. Features are unioned. Returns the paths
// that were written.
func ApplyModifications(spec *model.Specification, mods model.ModificationSet) []string {
	paths := make([]string, 0, len(mods.Set))
	for path := range mods.Set {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value := strings.TrimSpace(mods.Set[path])
		key := strings.ToLower(strings.TrimSpace(path))
		if !setPath(spec, key, value) {
			if spec.Additional == nil {
				spec.Additional = make(map[string]string)
			}
			spec.Additional[key] = value
		}
	}
	spec.AddFeatures(mods.AddFeatures...)
	return paths
}

func setPath(spec *model.Specification, path, value string) bool {
	switch path {
	case "color":
		spec.Color = value
		return true
	case "engine.label":
		spec.Engine.Option.Label = value
		return true
	case "starter.label":
		spec.Starter.Option.Label = value
		return true
	case "display.label":
		spec.Display.Option.Label = value
		return true
	case "track.length_mm":
		return setInt(&spec.Track.Option.LengthMM, value)
	case "track.width_mm":
		return setInt(&spec.Track.Option.WidthMM, value)
	case "track.lug_mm":
		return setFloat(&spec.Track.Option.LugMM, value)
	case "dimensions.length_mm":
		return setInt(&spec.Dimensions.LengthMM, value)
	case "dimensions.width_mm":
		return setInt(&spec.Dimensions.WidthMM, value)
	case "dimensions.height_mm":
		return setInt(&spec.Dimensions.HeightMM, value)
	case "dimensions.ski_stance_mm":
		return setInt(&spec.Dimensions.SkiStanceMM, value)
	case "dimensions.dry_weight_kg":
		return setInt(&spec.Dimensions.DryWeightKG, value)
	case "dimensions.fuel_capacity_l":
		return setFloat(&spec.Dimensions.FuelCapacityL, value)
	}
	return false
}

func setInt(dst *int, value string) bool {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	*dst = int(math.Round(f))
	return true
}

func setFloat(dst *float64, value string) bool {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false
	}
	*dst = f
	return true
}
