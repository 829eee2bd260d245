package kb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/beam-planner/model"
)

// ErrBadSolution reports a malformed solution file.
var ErrBadSolution = errors.New("bad solution")

// WriteSolution emits one `<user> <satellite> <color>` line per beam,
// in the assignment's user-id order.
func WriteSolution(w io.Writer, asg model.Assignment) error {
	bw := bufio.NewWriter(w)
	for _, b := range asg.Beams {
		if _, err := fmt.Fprintf(bw, "%d %d %s\n", b.User, b.Satellite, b.Color); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSolution parses the solution format back into an assignment sorted
// by user id. It performs no constraint checking; feed the result to the
// validator for that.
func ReadSolution(r io.Reader) (model.Assignment, error) {
	var asg model.Assignment

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
		if len(fields) != 3 {
			return model.Assignment{}, lineErr(lineNo, fmt.Errorf("%w: want `<user> <satellite> <color>`", ErrBadSolution))
		}
		userID, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return model.Assignment{}, lineErr(lineNo, fmt.Errorf("%w: user id %q", ErrBadSolution, fields[0]))
		}
		satID, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return model.Assignment{}, lineErr(lineNo, fmt.Errorf("%w: satellite id %q", ErrBadSolution, fields[1]))
		}
		color, err := model.ParseColor(fields[2])
		if err != nil {
			return model.Assignment{}, lineErr(lineNo, err)
		}
		asg.Beams = append(asg.Beams, model.Beam{
			User:      model.UserID(userID),
			Satellite: model.SatelliteID(satID),
			Color:     color,
		})
	}
	if err := sc.Err(); err != nil {
		return model.Assignment{}, fmt.Errorf("ReadSolution: %w", err)
	}
	asg.Sort()
	return asg, nil
}
