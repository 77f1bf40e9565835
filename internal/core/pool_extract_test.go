package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"metacore/pkg/domain"
)

func TestExtractPoolCandidatesReferencePools(t *testing.T) {
	rows := [][]string{
		{"Source Name", "Characteristics[Pooled Sample]", "characteristics[organism]"},
		{"S1", "not pooled", "human"},
		{"S2", "pooled", "human"},
		{"S3", "independent", "human"},
		{"Mix", "SN=S1,S2, S3,Missing", "human"},
		{"", "SN=S2", "human"},
	}
	out, err := ExtractPoolCandidates(rows, PoolExtractOptions{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []domain.Pool{
		{
			Name:                        "Mix",
			PooledOnlySamples:           []int{2},
			PooledAndIndependentSamples: []int{1, 3},
			IsReference:                 true,
			SDRFValue:                   "SN=S1,S2, S3,Missing",
		},
		{
			Name:              "Pool 2",
			PooledOnlySamples: []int{2},
			IsReference:       true,
			SDRFValue:         "SN=S2",
		},
	}
	if diff := cmp.Diff(want, out.Candidates, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Mix: Missing"}, out.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S1", "S2", "S3", "Mix", ""}, out.SourceNames); diff != "" {
		t.Fatalf("source names mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPoolCandidatesGeneratedNamesStayUnique(t *testing.T) {
	rows := [][]string{
		{"source name", "characteristics[pooled sample]"},
		{"", "SN=S1"},
		{"Pool 1", "SN=S2"},
		{"", "SN=S1,S2"},
		{"S1", "pooled"},
		{"S2", "pooled"},
	}
	out, err := ExtractPoolCandidates(rows, PoolExtractOptions{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	var names []string
	for _, p := range out.Candidates {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Pool 2", "Pool 1", "Pool 3"}, names); diff != "" {
		t.Fatalf("pool names mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPoolCandidatesSynthesizedPool(t *testing.T) {
	rows := [][]string{
		{"source name", "characteristics[pooled sample]"},
		{"S1", "pooled"},
		{"S2", "not pooled"},
		{"S3", "Pooled"},
	}
	out, err := ExtractPoolCandidates(rows, PoolExtractOptions{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []domain.Pool{{Name: "Pool 1", PooledOnlySamples: []int{1, 3}, SDRFValue: "SN=S1,S3"}}
	if diff := cmp.Diff(want, out.Candidates, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}

	out, err = ExtractPoolCandidates(rows, PoolExtractOptions{MarkReference: true})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Candidates) != 1 || !out.Candidates[0].IsReference {
		t.Fatalf("expected a reference pool, got %+v", out.Candidates)
	}
}

func TestExtractPoolCandidatesWithoutSignals(t *testing.T) {
	out, err := ExtractPoolCandidates(nil, PoolExtractOptions{})
	if err != nil || len(out.Candidates) != 0 {
		t.Fatalf("empty rows: %+v %v", out, err)
	}

	rows := [][]string{{"source name", "characteristics[organism]"}, {"S1", "human"}}
	out, err = ExtractPoolCandidates(rows, PoolExtractOptions{})
	if err != nil || len(out.Candidates) != 0 {
		t.Fatalf("no pooled column: %+v %v", out, err)
	}

	rows = [][]string{{"characteristics[pooled sample]"}, {"SN=S1"}}
	if _, err := ExtractPoolCandidates(rows, PoolExtractOptions{}); err == nil {
		t.Fatalf("expected error when SN references cannot be resolved without a source name column")
	}
}

func TestExtractPoolCandidatesCustomColumns(t *testing.T) {
	rows := [][]string{
		{"sample", "pool"},
		{"a", "pooled"},
		{"b", "pooled"},
	}
	out, err := ExtractPoolCandidates(rows, PoolExtractOptions{PooledColumn: "pool", SourceNameColumn: "sample"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(out.Candidates) != 1 || out.Candidates[0].SDRFValue != "SN=a,b" {
		t.Fatalf("unexpected candidates %+v", out.Candidates)
	}
}

func TestReferenceSDRFValue(t *testing.T) {
	names := []string{"S1", "", "S3"}
	if got := ReferenceSDRFValue([]int{3, 1, 2, 3, 9}, names); got != "SN=S1,S3" {
		t.Fatalf("unexpected sdrf value %q", got)
	}
	if got := HeaderIndex([]string{"a", " Source Name "}, "source name"); got != 1 {
		t.Fatalf("header lookup: got %d", got)
	}
}
