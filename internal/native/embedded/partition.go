package embedded

import (
	"sort"

	"github.com/tuannm99/novagrid/internal/native"
)

type partitionController struct {
	st     *store
	closed bool
}

var _ native.PartitionController = (*partitionController)(nil)

func (pc *partitionController) usable() error {
	if pc.closed {
		return errClosed("partition controller")
	}
	return pc.st.usable()
}

func (pc *partitionController) checkPartition(p int32) error {
	if p < 0 || int(p) >= pc.st.cl.partitionCount {
		return fail(native.CodeIllegalParameter, "partition %d out of range [0, %d)", p, pc.st.cl.partitionCount)
	}
	return nil
}

func (pc *partitionController) PartitionCount() (int32, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	return int32(pc.st.cl.partitionCount), nil
}

// names returns the sorted names of containers in partition p.
func (pc *partitionController) names(p int32) []string {
	db := pc.st.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []string
	for _, cs := range db.containers {
		cs.mu.RLock()
		if cs.partition == p {
			out = append(out, cs.info.Name)
		}
		cs.mu.RUnlock()
	}
	sort.Strings(out)
	return out
}

func (pc *partitionController) ContainerCount(p int32) (int64, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	if err := pc.checkPartition(p); err != nil {
		return 0, err
	}
	return int64(len(pc.names(p))), nil
}

func (pc *partitionController) ContainerNames(p int32, start, limit int64) ([]string, error) {
	if err := pc.usable(); err != nil {
		return nil, err
	}
	if err := pc.checkPartition(p); err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, fail(native.CodeIllegalParameter, "negative start %d", start)
	}

	all := pc.names(p)
	if start >= int64(len(all)) {
		return []string{}, nil
	}
	all = all[start:]
	if limit >= 0 && limit < int64(len(all)) {
		all = all[:limit]
	}
	return all, nil
}

func (pc *partitionController) PartitionIndexOfContainer(name string) (int32, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, fail(native.CodeEmptyParameter, "container name is empty")
	}
	return pc.st.cl.partitionOf(name), nil
}

func (pc *partitionController) Close() error {
	if pc.closed {
		return nil
	}
	pc.closed = true
	pc.st.d.open.controllers.Add(-1)
	return nil
}
