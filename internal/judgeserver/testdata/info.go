// Package testdata loads test case sets and caches them locally from
// object storage.
package testdata

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	appErr "rivoj/pkg/errors"
)

const infoFileName = "info"

// TestCaseInfo describes one test case inside a set.
type TestCaseInfo struct {
	InputName         string `json:"input_name"`
	OutputName        string `json:"output_name"`
	OutputSize        int64  `json:"output_size"`
	StrippedOutputMD5 string `json:"stripped_output_md5"`
}

// Info is the metadata file shipped alongside a test case set.
type Info struct {
	SPJ       bool                    `json:"spj"`
	TestCases map[string]TestCaseInfo `json:"test_cases"`
}

// LoadInfo reads and validates the info file of an extracted test case set.
func LoadInfo(dir string) (Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, infoFileName))
	if err != nil {
		return Info{}, appErr.Wrapf(err, appErr.TestDataNotFound, "read test case info failed")
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, appErr.Wrapf(err, appErr.TestDataInvalid, "parse test case info failed")
	}
	if len(info.TestCases) == 0 {
		return Info{}, appErr.New(appErr.TestDataInvalid).WithMessage("test case set is empty")
	}
	return info, nil
}

// OrderedIDs returns the test case labels sorted numerically, so "10" judges
// after "9". Labels that are not numbers sort last in lexical order.
func (i Info) OrderedIDs() []string {
	ids := make([]string, 0, len(i.TestCases))
	for id := range i.TestCases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		na, nb := labelOrder(ids[a]), labelOrder(ids[b])
		if na != nb {
			return na < nb
		}
		return ids[a] < ids[b]
	})
	return ids
}

func labelOrder(label string) int64 {
	n, err := strconv.ParseInt(label, 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
