// Package naming derives the names of cluster resources.
//
// A server's fullname is the single key that pairs a declared server with its
// live cloud instance and its node record, so every component goes through
// these helpers instead of formatting names itself.
package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// Server returns the fullname of the index-th server of a facet.
func Server(cluster, facet string, index int) string {
	return fmt.Sprintf("%s-%s-%d", cluster, facet, index)
}

// Facet returns the name shared by a facet's servers, used for its security group.
func Facet(cluster, facet string) string {
	return fmt.Sprintf("%s-%s", cluster, facet)
}

// Volume returns the name of a server's volume.
func Volume(server, volume string) string {
	return fmt.Sprintf("%s-%s", server, volume)
}

// PlacementGroup returns the default placement group of a facet.
func PlacementGroup(cluster, facet string) string {
	return fmt.Sprintf("%s-%s-pg", cluster, facet)
}

// NodeKey returns the object key of a node record in a bucket.
func NodeKey(prefix, fullname string) string {
	if prefix == "" {
		return "nodes/" + fullname + ".yaml"
	}
	return strings.TrimSuffix(prefix, "/") + "/nodes/" + fullname + ".yaml"
}

// ParseServer splits a fullname into facet and index, given its cluster.
// Facet names may contain dashes; the index is always the last segment.
func ParseServer(cluster, fullname string) (facet string, index int, ok bool) {
	rest, found := strings.CutPrefix(fullname, cluster+"-")
	if !found {
		return "", 0, false
	}
	cut := strings.LastIndex(rest, "-")
	if cut <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(rest[cut+1:])
	if err != nil || index < 0 {
		return "", 0, false
	}
	return rest[:cut], index, true
}
