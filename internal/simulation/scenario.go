package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"multi-uuv-sim/internal/common"
	"multi-uuv-sim/internal/pose"
)

// Scenario kinds accepted by BuildScenario.
const (
	ScenarioLine      = "line"
	ScenarioCircle    = "circle"
	ScenarioPerturbed = "perturbed"
	ScenarioRandom    = "random"
	ScenarioFile      = "file"
)

// ScenarioDocument is the on-disk description of initial conditions.
//
//	vehicles:
//	  - position: [0, 0]
//	    yaw: 0
//	  - position: [1, 0]
//	    yaw: 3.14
type ScenarioDocument struct {
	Vehicles []ScenarioVehicle `yaml:"vehicles"`
}

// ScenarioVehicle is the initial pose of one vehicle in a scenario file.
type ScenarioVehicle struct {
	Position [2]float64 `yaml:"position"`
	Yaw      float64    `yaml:"yaw"`
}

// ScenarioOptions parameterizes BuildScenario.
type ScenarioOptions struct {
	Kind         string
	Vehicles     int
	Radius       float64
	Perturbation float64
	File         string
	Rand         *rand.Rand
}

// BuildScenario returns the initial poses for the requested kind.
func BuildScenario(opts ScenarioOptions) ([]pose.Pose, error) {
	if opts.Kind != ScenarioFile && opts.Vehicles < 1 {
		return nil, fmt.Errorf("scenario %q needs at least one vehicle, got %d", opts.Kind, opts.Vehicles)
	}
	switch opts.Kind {
	case ScenarioLine:
		return LineScenario(opts.Vehicles), nil
	case ScenarioCircle:
		return CircleScenario(opts.Vehicles, opts.Radius), nil
	case ScenarioPerturbed:
		if opts.Rand == nil {
			return nil, fmt.Errorf("scenario %q needs a random source", opts.Kind)
		}
		return PerturbedCircleScenario(opts.Rand, opts.Vehicles, opts.Radius, opts.Perturbation), nil
	case ScenarioRandom:
		if opts.Rand == nil {
			return nil, fmt.Errorf("scenario %q needs a random source", opts.Kind)
		}
		return RandomScenario(opts.Rand, opts.Vehicles, opts.Radius)
	case ScenarioFile:
		return LoadScenario(opts.File)
	default:
		return nil, fmt.Errorf("unknown scenario kind %q", opts.Kind)
	}
}

// LineScenario places vehicle i at (i, 0) with yaw i*3.14, so neighbours
// start almost head-on.
func LineScenario(n int) []pose.Pose {
	poses := make([]pose.Pose, n)
	for i := range poses {
		poses[i] = pose.New(common.NewVec2(float64(i), 0), float64(i)*3.14)
	}
	return poses
}

// CircleScenario spaces n vehicles evenly on a circle of radius around the
// origin, each heading counter-clockwise along it. With radius equal to
// speed/omega0 every center estimate is the origin.
func CircleScenario(n int, radius float64) []pose.Pose {
	poses := make([]pose.Pose, n)
	for i := range poses {
		theta := common.FullTurn * float64(i) / float64(n)
		pos := common.NewVec2(radius*math.Cos(theta), radius*math.Sin(theta))
		poses[i] = pose.New(pos, theta+math.Pi/2)
	}
	return poses
}

// PerturbedCircleScenario is CircleScenario with each coordinate and heading
// shifted uniformly by up to ±perturbation.
func PerturbedCircleScenario(rng *rand.Rand, n int, radius, perturbation float64) []pose.Pose {
	noise := UniformNoise(rng, perturbation, perturbation)
	poses := CircleScenario(n, radius)
	for i, p := range poses {
		poses[i] = noise(p)
	}
	return poses
}

// RandomScenario scatters n vehicles uniformly over the square of half-width
// extent around the origin with uniformly random headings.
func RandomScenario(rng *rand.Rand, n int, extent float64) ([]pose.Pose, error) {
	bounds := []float64{-extent, extent, -extent, extent}
	poses := make([]pose.Pose, n)
	for i := range poses {
		pos, err := common.NewRandomVec2(rng, bounds)
		if err != nil {
			return nil, err
		}
		poses[i] = pose.New(pos, rng.Float64()*common.FullTurn)
	}
	return poses, nil
}

// SaveScenario writes poses to path in the scenario file format.
func SaveScenario(path string, poses []pose.Pose) error {
	data, err := EncodeScenario(poses)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) ([]pose.Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes YAML scenario data.
func ParseScenario(data []byte) ([]pose.Pose, error) {
	var file ScenarioDocument
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if len(file.Vehicles) == 0 {
		return nil, fmt.Errorf("scenario defines no vehicles")
	}
	poses := make([]pose.Pose, len(file.Vehicles))
	for i, v := range file.Vehicles {
		poses[i] = pose.New(common.NewVec2(v.Position[0], v.Position[1]), v.Yaw)
	}
	return poses, nil
}

// EncodeScenario renders poses in the scenario file format.
func EncodeScenario(poses []pose.Pose) ([]byte, error) {
	file := ScenarioDocument{Vehicles: make([]ScenarioVehicle, len(poses))}
	for i, p := range poses {
		file.Vehicles[i] = ScenarioVehicle{
			Position: [2]float64{p.Position.X, p.Position.Y},
			Yaw:      p.Yaw(),
		}
	}
	return yaml.Marshal(&file)
}
