package gridstore

import (
	"math"

	"github.com/tuannm99/novagrid/internal/native"
)

// PartitionController reports how containers are spread over partitions.
type PartitionController struct {
	s      *Session
	npc    native.PartitionController
	closed bool
}

func (pc *PartitionController) usable() error {
	if pc.closed {
		return stateError("partition controller is closed")
	}
	return nil
}

func (pc *PartitionController) PartitionCount() (int, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	n, err := pc.npc.PartitionCount()
	if err != nil {
		return 0, nativeError("partition controller", err)
	}
	return int(n), nil
}

func (pc *PartitionController) ContainerCount(partition int) (int64, error) {
	p, err := pc.partition(partition)
	if err != nil {
		return 0, err
	}
	n, err := pc.npc.ContainerCount(p)
	if err != nil {
		return 0, nativeError("partition controller", err)
	}
	return n, nil
}

// ContainerNames lists up to limit names of partition starting at offset
// start. A negative limit lists every remaining name.
func (pc *PartitionController) ContainerNames(partition int, start, limit int64) ([]string, error) {
	p, err := pc.partition(partition)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, rangeError("negative start %d", start)
	}
	names, err := pc.npc.ContainerNames(p, start, limit)
	if err != nil {
		return nil, nativeError("partition controller", err)
	}
	return append([]string(nil), names...), nil
}

func (pc *PartitionController) PartitionIndexOfContainer(name string) (int, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	if name == "" {
		return 0, argumentError("container name is empty")
	}
	n, err := pc.npc.PartitionIndexOfContainer(name)
	if err != nil {
		return 0, nativeError("partition controller", err)
	}
	return int(n), nil
}

// Set rejects every attribute; all controller attributes are read only.
func (pc *PartitionController) Set(attr string, _ any) error {
	return argumentError("can't set read only attribute %q", attr)
}

func (pc *PartitionController) Close() error {
	if pc.closed {
		return nil
	}
	pc.closed = true
	return nativeError("partition controller", pc.npc.Close())
}

func (pc *PartitionController) partition(p int) (int32, error) {
	if err := pc.usable(); err != nil {
		return 0, err
	}
	if p < 0 || p > math.MaxInt32 {
		return 0, rangeError("partition %d out of range", p)
	}
	return int32(p), nil
}
