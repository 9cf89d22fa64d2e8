package domain

// StatusCounts maps every donation status to a count. Missing statuses
// read as zero.
type StatusCounts map[Status]int64

func (c StatusCounts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// RoleCounts maps every role to a user count.
type RoleCounts map[Role]int64
