package kb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/beam-planner/model"
)

// ErrBadScenario reports a malformed scenario file.
var ErrBadScenario = errors.New("bad scenario")

// ScenarioInfo summarizes what a loader put into the store. MinCoverage
// is 0 when the scenario does not demand a floor.
type ScenarioInfo struct {
	Users       int
	Satellites  int
	MinCoverage float64
}

// LoadScenario reads the line-oriented text format:
//
//	user <id> <x> <y> <z>
//	sat <id> <x> <y> <z>
//	min_coverage <fraction>
//
// Coordinates are ECEF kilometres. Blank lines and #-comments are
// ignored; directives may appear in any order. Errors carry the line
// number and wrap ErrBadScenario or the store's duplicate-id sentinels.
func LoadScenario(fkb *FleetKB, r io.Reader) (*ScenarioInfo, error) {
	if fkb == nil {
		return nil, fmt.Errorf("LoadScenario: store is nil")
	}

	info := &ScenarioInfo{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "user":
			id, pos, err := parseEntityFields(fields)
			if err != nil {
				return nil, lineErr(lineNo, err)
			}
			if err := fkb.AddUser(model.User{ID: model.UserID(id), Position: pos}); err != nil {
				return nil, lineErr(lineNo, err)
			}
			info.Users++
		case "sat":
			id, pos, err := parseEntityFields(fields)
			if err != nil {
				return nil, lineErr(lineNo, err)
			}
			if err := fkb.AddSatellite(model.Satellite{ID: model.SatelliteID(id), Position: pos}); err != nil {
				return nil, lineErr(lineNo, err)
			}
			info.Satellites++
		case "min_coverage":
			if len(fields) != 2 {
				return nil, lineErr(lineNo, fmt.Errorf("%w: want `min_coverage <fraction>`", ErrBadScenario))
			}
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || v < 0 || v > 1 {
				return nil, lineErr(lineNo, fmt.Errorf("%w: min_coverage %q", ErrBadScenario, fields[1]))
			}
			info.MinCoverage = v
		default:
			return nil, lineErr(lineNo, fmt.Errorf("%w: unknown directive %q", ErrBadScenario, fields[0]))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("LoadScenario: %w", err)
	}
	return info, nil
}

func parseEntityFields(fields []string) (int64, model.Coordinates, error) {
	if len(fields) != 5 {
		return 0, model.Coordinates{}, fmt.Errorf("%w: want `%s <id> <x> <y> <z>`", ErrBadScenario, fields[0])
	}
	id, err := strconv.ParseInt(fields[1], 10, 32)
	if err != nil {
		return 0, model.Coordinates{}, fmt.Errorf("%w: id %q", ErrBadScenario, fields[1])
	}
	var coords [3]float64
	for i, raw := range fields[2:5] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, model.Coordinates{}, fmt.Errorf("%w: coordinate %q", ErrBadScenario, raw)
		}
		coords[i] = v
	}
	return id, model.Coordinates{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func lineErr(n int, err error) error {
	return fmt.Errorf("line %d: %w", n, err)
}

// Unexported JSON shapes, free to evolve separately from the model types.
type scenarioJSON struct {
	Users       []entityJSON `json:"users"`
	Satellites  []entityJSON `json:"satellites"`
	MinCoverage float64      `json:"minCoverage"`
}

type entityJSON struct {
	ID int32   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// LoadScenarioJSON reads the JSON scenario shape into the store. Same
// semantics as LoadScenario; the CLI picks the decoder by file extension.
func LoadScenarioJSON(fkb *FleetKB, r io.Reader) (*ScenarioInfo, error) {
	if fkb == nil {
		return nil, fmt.Errorf("LoadScenarioJSON: store is nil")
	}

	var payload scenarioJSON
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadScenarioJSON: decode failed: %w", err)
	}
	if payload.MinCoverage < 0 || payload.MinCoverage > 1 {
		return nil, fmt.Errorf("%w: minCoverage %v", ErrBadScenario, payload.MinCoverage)
	}

	info := &ScenarioInfo{MinCoverage: payload.MinCoverage}
	for _, e := range payload.Users {
		if err := fkb.AddUser(model.User{
			ID:       model.UserID(e.ID),
			Position: model.Coordinates{X: e.X, Y: e.Y, Z: e.Z},
		}); err != nil {
			return nil, err
		}
		info.Users++
	}
	for _, e := range payload.Satellites {
		if err := fkb.AddSatellite(model.Satellite{
			ID:       model.SatelliteID(e.ID),
			Position: model.Coordinates{X: e.X, Y: e.Y, Z: e.Z},
		}); err != nil {
			return nil, err
		}
		info.Satellites++
	}
	return info, nil
}
