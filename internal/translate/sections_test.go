package translate

import "testing"

func TestSplitSectionsHandlesCaseChangingRunes(t *testing.T) {
	// 'İ' lowercases to two code points, so byte offsets into a lowercased
	// copy of the reply would not line up with the original.
	raw := "İstanbul baskısı üzerine notlar.\n[Analysis]\nkept candidate two\n[Translation]\nİyi bir çeviri.\nİkinci paragraf."
	note, final := splitSections(raw, markerAnalysis, markerTranslation)
	if note != "kept candidate two" {
		t.Fatalf("wrong note section: %q", note)
	}
	if final != "İyi bir çeviri.\nİkinci paragraf." {
		t.Fatalf("wrong final section: %q", final)
	}
}

func TestSplitSectionsKeepsTextOnMarkerLines(t *testing.T) {
	raw := "[review] fixed two omissions\n[final] Corrected text."
	note, final := splitSections(raw, markerReview, markerFinal)
	if note != "fixed two omissions" {
		t.Fatalf("wrong note section: %q", note)
	}
	if final != "Corrected text." {
		t.Fatalf("wrong final section: %q", final)
	}
}

func TestSplitSectionsFallsBackOnReversedMarkers(t *testing.T) {
	raw := "[translation]\ntext first\n[analysis]\nnote after"
	note, final := splitSections(raw, markerAnalysis, markerTranslation)
	if note != "" {
		t.Fatalf("expected empty note, got %q", note)
	}
	if final != raw {
		t.Fatalf("reply without ordered markers should be used whole, got %q", final)
	}
}
