package services

import (
	"errors"
	"testing"
)

func TestDocTypeForExtension(t *testing.T) {
	tests := []struct {
		ext     string
		want    string
		wantErr bool
	}{
		{".pdf", DocTypePDF, false},
		{".PDF", DocTypePDF, false},
		{".docx", DocTypeDocx, false},
		{".doc", DocTypeDocx, false},
		{".pptx", DocTypePptx, false},
		{".ppt", DocTypePptx, false},
		{".png", DocTypeImage, false},
		{".jpg", DocTypeImage, false},
		{".jpeg", DocTypeImage, false},
		{".xlsx", "", true},
		{".txt", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := docTypeForExtension(tt.ext)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("want ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
