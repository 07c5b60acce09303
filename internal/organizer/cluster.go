package organizer

import (
	"math"
	"sort"

	"curator/internal/tagger"
)

// FileTags is the clusterer input for one file: its weighted tags and an
// optional embedding vector.
type FileTags struct {
	Path      string
	Tags      []tagger.Tag
	Embedding []float32
}

// Cluster groups files sharing a dominant tag. Centroid is the mean of the
// member embeddings, empty when no member carries one.
type Cluster struct {
	Tag      string
	Paths    []string
	Centroid []float32
}

// Clusterer assigns each file to exactly one cluster by its highest-weight
// tag, then optionally refines the assignment by embedding similarity.
type Clusterer struct {
	minClusterSize      int
	fallbackTag         string
	similarityThreshold float64
}

// NewClusterer configures the clusterer. Clusters smaller than
// minClusterSize are merged into the fallback cluster.
func NewClusterer(minClusterSize int, fallbackTag string, similarityThreshold float64) *Clusterer {
	if minClusterSize < 1 {
		minClusterSize = 1
	}
	if fallbackTag == "" {
		fallbackTag = "misc"
	}
	return &Clusterer{
		minClusterSize:      minClusterSize,
		fallbackTag:         fallbackTag,
		similarityThreshold: math.Min(math.Max(similarityThreshold, 0), 1),
	}
}

// Cluster partitions files into clusters. The result is deterministic: a
// file's cluster depends only on its tags, its embedding, and the full input
// set, never on input order.
func (c *Clusterer) Cluster(files []FileTags) []Cluster {
	if len(files) == 0 {
		return nil
	}
	sorted := append([]FileTags(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	assignment := make(map[string]string, len(sorted))
	for _, file := range sorted {
		assignment[file.Path] = dominantTag(file.Tags, c.fallbackTag)
	}

	if c.similarityThreshold > 0 {
		c.refine(sorted, assignment)
	}

	byTag := make(map[string][]string)
	for _, file := range sorted {
		tag := assignment[file.Path]
		byTag[tag] = append(byTag[tag], file.Path)
	}

	// Small clusters collapse into the fallback cluster instead of producing
	// singleton folders.
	merged := make(map[string][]string)
	for tag, paths := range byTag {
		if tag != c.fallbackTag && len(paths) < c.minClusterSize {
			merged[c.fallbackTag] = append(merged[c.fallbackTag], paths...)
			continue
		}
		merged[tag] = append(merged[tag], paths...)
	}

	embeddings := make(map[string][]float32, len(sorted))
	for _, file := range sorted {
		if len(file.Embedding) > 0 {
			embeddings[file.Path] = file.Embedding
		}
	}

	tags := make([]string, 0, len(merged))
	for tag := range merged {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	clusters := make([]Cluster, 0, len(tags))
	for _, tag := range tags {
		paths := merged[tag]
		sort.Strings(paths)
		clusters = append(clusters, Cluster{
			Tag:      tag,
			Paths:    paths,
			Centroid: centroidOf(paths, embeddings),
		})
	}
	return clusters
}

// refine moves a file to the tag cluster whose centroid is most similar to
// the file's embedding, when that similarity clears the threshold. Tag
// assignment stays the baseline for files without embeddings.
func (c *Clusterer) refine(files []FileTags, assignment map[string]string) {
	byTag := make(map[string][]string)
	embeddings := make(map[string][]float32)
	for _, file := range files {
		byTag[assignment[file.Path]] = append(byTag[assignment[file.Path]], file.Path)
		if len(file.Embedding) > 0 {
			embeddings[file.Path] = file.Embedding
		}
	}

	centroids := make(map[string][]float32, len(byTag))
	tags := make([]string, 0, len(byTag))
	for tag, paths := range byTag {
		if centroid := centroidOf(paths, embeddings); centroid != nil {
			centroids[tag] = centroid
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)

	for _, file := range files {
		vector, ok := embeddings[file.Path]
		if !ok {
			continue
		}
		bestTag := assignment[file.Path]
		bestSim := c.similarityThreshold
		for _, tag := range tags {
			if sim := cosineSimilarity(vector, centroids[tag]); sim > bestSim {
				bestSim = sim
				bestTag = tag
			}
		}
		assignment[file.Path] = bestTag
	}
}

// dominantTag picks the highest-weight tag with lexicographic tie-break.
func dominantTag(tags []tagger.Tag, fallback string) string {
	if len(tags) == 0 {
		return fallback
	}
	best := tags[0]
	for _, tag := range tags[1:] {
		if tag.Weight > best.Weight || (tag.Weight == best.Weight && tag.Name < best.Name) {
			best = tag
		}
	}
	if best.Name == "" {
		return fallback
	}
	return best.Name
}

func centroidOf(paths []string, embeddings map[string][]float32) []float32 {
	var centroid []float32
	count := 0
	for _, path := range paths {
		vector, ok := embeddings[path]
		if !ok {
			continue
		}
		if centroid == nil {
			centroid = make([]float32, len(vector))
		}
		if len(vector) != len(centroid) {
			continue
		}
		for i, v := range vector {
			centroid[i] += v
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range centroid {
		centroid[i] /= float32(count)
	}
	return centroid
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
