package version

import (
	_ "embed" // for go:embed
	"fmt"
	"strconv"
	"strings"
)

// VERSION holds the server's version
//
//go:embed VERSION
var VERSION string

// Version segments
var (
	MAJOR int
	MINOR int
	FIX   int
	PRE   int
)

func init() {
	VERSION = strings.TrimSpace(VERSION)
	MAJOR, MINOR, FIX, PRE = parse(VERSION)
}

// parse splits a version of the form MAJOR.MINOR.FIX[-prPRE]
func parse(v string) (major, minor, fix, pre int) {
	segments := strings.SplitN(v, ".", 3)
	if len(segments) != 3 {
		return
	}
	major, _ = strconv.Atoi(segments[0])
	minor, _ = strconv.Atoi(segments[1])
	ps := strings.SplitN(segments[2], "-", 2)
	fix, _ = strconv.Atoi(ps[0])
	if len(ps) > 1 {
		pre, _ = strconv.Atoi(strings.TrimPrefix(ps[1], "pr"))
	}
	return
}

// Banner returns a one-line startup banner
func Banner() string {
	if PRE > 0 {
		return fmt.Sprintf("kvapi v%d.%d.%d (pre-release %d)", MAJOR, MINOR, FIX, PRE)
	}
	return fmt.Sprintf("kvapi v%d.%d.%d", MAJOR, MINOR, FIX)
}
