package services

import "testing"

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "page image",
			got:  pageImageKey("intermediate-images", "run-1", "report", 3),
			want: "intermediate-images/run-1/report_page_3.png",
		},
		{
			name: "page text",
			got:  pageTextKey("intermediate-raw-text", "run-1", "report", 3),
			want: "intermediate-raw-text/run-1/report_page_3_text.txt",
		},
		{
			name: "cropped image",
			got:  croppedImageKey("cropped-images", "run-1", "report", 3, 2),
			want: "cropped-images/run-1/report_page_3_img_2.jpg",
		},
		{
			name: "page result",
			got:  pageResultKey("intermediate-page-results", "run-1", "report", 3),
			want: "intermediate-page-results/run-1/report_page_3_results.json",
		},
		{
			name: "aggregate",
			got:  aggregateResultKey("final-outputs", "run-1", "report"),
			want: "final-outputs/run-1/report_aggregated_results.json",
		},
		{
			name: "rendered artifact",
			got:  renderedOutputKey("final-outputs", "run-1", "report", ".md"),
			want: "final-outputs/run-1/report_combined.md",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestEstimatePageNumber(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want *int
	}{
		{
			name: "plain result reference",
			uri:  "gs://b/intermediate-page-results/run/report_page_7_results.json",
			want: intPtr(7),
		},
		{
			name: "last segment wins when the base name also matches",
			uri:  "gs://b/p/run/notes_page_2_page_9_results.json",
			want: intPtr(9),
		},
		{
			name: "no page segment",
			uri:  "gs://b/p/run/report_results.json",
			want: nil,
		},
		{
			name: "empty string",
			uri:  "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimatePageNumber(tt.uri)
			switch {
			case got == nil && tt.want != nil:
				t.Errorf("got nil, want %d", *tt.want)
			case got != nil && tt.want == nil:
				t.Errorf("got %d, want nil", *got)
			case got != nil && tt.want != nil && *got != *tt.want:
				t.Errorf("got %d, want %d", *got, *tt.want)
			}
		})
	}
}

func intPtr(n int) *int { return &n }
