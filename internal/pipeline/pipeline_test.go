package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vintner/internal/batch"
	"vintner/internal/pipeline"
	"vintner/internal/services/drive"
	"vintner/internal/services/labelapi"
	"vintner/internal/testsupport"
)

type fakeLabels struct {
	uploadItems    []labelapi.UploadItem
	uploadErr      error
	ocrResults     []labelapi.OcrResult
	ocrErr         error
	ocrCalls       int
	compareResults []labelapi.CompareResult
	compareErr     error
	compareCalls   int
	compareIDs     []string
}

func (f *fakeLabels) Upload(ctx context.Context, paths []string) ([]labelapi.UploadItem, error) {
	return f.uploadItems, f.uploadErr
}

func (f *fakeLabels) ProcessOcr(ctx context.Context, ids []string) ([]labelapi.OcrResult, error) {
	f.ocrCalls++
	return f.ocrResults, f.ocrErr
}

func (f *fakeLabels) CompareBatch(ctx context.Context, ids []string) ([]labelapi.CompareResult, error) {
	f.compareCalls++
	f.compareIDs = ids
	return f.compareResults, f.compareErr
}

type fakeStorage struct {
	linked      bool
	statusErr   error
	uploadErr   error
	uploadCalls int
	selections  []drive.Selection
}

func (f *fakeStorage) Status(ctx context.Context, userID string) (drive.Capability, error) {
	return drive.Capability{Linked: f.linked}, f.statusErr
}

func (f *fakeStorage) Upload(ctx context.Context, userID string, selections []drive.Selection) (drive.UploadResponse, error) {
	f.uploadCalls++
	f.selections = selections
	return drive.UploadResponse{SuccessCount: len(selections)}, f.uploadErr
}

func newOrchestrator(t *testing.T, labels pipeline.LabelService, storage pipeline.StorageService) (*pipeline.Orchestrator, *batch.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Drive.MirrorUploads = storage != nil
	store := testsupport.MustOpenStore(t, cfg)
	return pipeline.New(store, labels, storage, cfg, nil), store
}

func writeImages(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
			t.Fatalf("write image %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestUploadCreatesBatch(t *testing.T) {
	labels := &fakeLabels{uploadItems: []labelapi.UploadItem{
		{ID: "id-1", Filename: "Margaux.JPG"},
		{ID: "id-2", Filename: "latour.jpg"},
	}}
	orch, store := newOrchestrator(t, labels, nil)

	b, err := orch.Upload(context.Background(), writeImages(t, "Margaux.JPG", "latour.jpg"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if len(b.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(b.Items))
	}
	if b.Items[0].NormalizedFilename != "margaux.jpg" {
		t.Fatalf("expected normalized key, got %q", b.Items[0].NormalizedFilename)
	}
	if b.Items[0].Status != batch.StatusUploaded {
		t.Fatalf("expected uploaded status, got %q", b.Items[0].Status)
	}
	if b.UploadMs < 0 {
		t.Fatalf("expected non-negative upload duration, got %d", b.UploadMs)
	}

	persisted, err := store.CurrentBatch(context.Background())
	if err != nil {
		t.Fatalf("CurrentBatch returned error: %v", err)
	}
	if persisted.ID != b.ID || len(persisted.Items) != 2 {
		t.Fatalf("batch not persisted: %+v", persisted)
	}
}

func TestUploadAppendsToCurrentBatch(t *testing.T) {
	labels := &fakeLabels{uploadItems: []labelapi.UploadItem{{ID: "id-1", Filename: "a.jpg"}}}
	orch, store := newOrchestrator(t, labels, nil)

	first, err := orch.Upload(context.Background(), writeImages(t, "a.jpg"))
	if err != nil {
		t.Fatalf("first upload returned error: %v", err)
	}

	// Simulate a finished OCR session so the lock reset is observable.
	first.OcrLocked = true
	first.CompareLocked = true
	first.LastError = "ocr stage failed"
	if err := store.SaveBatch(context.Background(), first); err != nil {
		t.Fatalf("save batch: %v", err)
	}

	labels.uploadItems = []labelapi.UploadItem{{ID: "id-2", Filename: "b.jpg"}}
	second, err := orch.Upload(context.Background(), writeImages(t, "b.jpg"))
	if err != nil {
		t.Fatalf("second upload returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upload to reuse batch %d, got %d", first.ID, second.ID)
	}
	if len(second.Items) != 2 {
		t.Fatalf("expected 2 items after append, got %d", len(second.Items))
	}
	if second.OcrLocked || second.CompareLocked {
		t.Fatal("expected stage locks to reset on upload")
	}
	if second.LastError != "" {
		t.Fatalf("expected stage error to clear on upload, got %q", second.LastError)
	}
}

func TestUploadAfterCancelStartsNewBatch(t *testing.T) {
	labels := &fakeLabels{uploadItems: []labelapi.UploadItem{{ID: "id-1", Filename: "a.jpg"}}}
	orch, _ := newOrchestrator(t, labels, nil)

	first, err := orch.Upload(context.Background(), writeImages(t, "a.jpg"))
	if err != nil {
		t.Fatalf("first upload returned error: %v", err)
	}
	if _, err := orch.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}

	labels.uploadItems = []labelapi.UploadItem{{ID: "id-2", Filename: "b.jpg"}}
	second, err := orch.Upload(context.Background(), writeImages(t, "b.jpg"))
	if err != nil {
		t.Fatalf("second upload returned error: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("expected upload after cancel to start a new batch")
	}
	if len(second.Items) != 1 {
		t.Fatalf("expected 1 item in the new batch, got %d", len(second.Items))
	}
}

func TestUploadMirrorsToLinkedStorage(t *testing.T) {
	labels := &fakeLabels{uploadItems: []labelapi.UploadItem{{ID: "id-1", Filename: "a.jpg"}}}
	storage := &fakeStorage{linked: true}
	orch, _ := newOrchestrator(t, labels, storage)

	if _, err := orch.Upload(context.Background(), writeImages(t, "a.jpg")); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if storage.uploadCalls != 1 {
		t.Fatalf("expected one mirror upload, got %d", storage.uploadCalls)
	}
	if len(storage.selections) != 1 || storage.selections[0].Target != drive.TargetInput {
		t.Fatalf("unexpected mirror selections: %+v", storage.selections)
	}
}

func TestUploadMirrorFailureDoesNotFailUpload(t *testing.T) {
	labels := &fakeLabels{uploadItems: []labelapi.UploadItem{{ID: "id-1", Filename: "a.jpg"}}}
	storage := &fakeStorage{linked: true, uploadErr: errors.New("storage down")}
	orch, _ := newOrchestrator(t, labels, storage)

	if _, err := orch.Upload(context.Background(), writeImages(t, "a.jpg")); err != nil {
		t.Fatalf("expected mirror failure to be swallowed, got %v", err)
	}
}

func seedUploadedBatch(t *testing.T, orch *pipeline.Orchestrator, labels *fakeLabels, names ...string) *batch.Batch {
	t.Helper()
	items := make([]labelapi.UploadItem, 0, len(names))
	for i, name := range names {
		items = append(items, labelapi.UploadItem{ID: names[i], Filename: name})
	}
	labels.uploadItems = items
	b, err := orch.Upload(context.Background(), writeImages(t, names...))
	if err != nil {
		t.Fatalf("seed upload returned error: %v", err)
	}
	return b
}

func TestRunOCRCorrelatesAndLocks(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg", "b.jpg")

	labels.ocrResults = []labelapi.OcrResult{
		{OriginalFilename: "b.jpg", NewFilename: "b_renamed.jpg", FormattedName: "Chateau B 2019"},
		{OriginalFilename: "a.jpg", FormattedName: "Chateau A 2020"},
	}

	b, err := orch.RunOCR(context.Background())
	if err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}
	if !b.OcrLocked {
		t.Fatal("expected ocr lock to engage")
	}
	first := b.ItemByID("a.jpg")
	if first.Status != batch.StatusOcrDone || first.Result.OcrText != "Chateau A 2020" {
		t.Fatalf("exact-match correlation failed: %+v", first)
	}
	if first.Result.CorrectionStatus != batch.CorrectionNHR || first.Result.SelectedOption != "" {
		t.Fatalf("fresh result should carry the review sentinel: %+v", first.Result)
	}
	second := b.ItemByID("b.jpg")
	if second.ServerFilename != "b_renamed.jpg" {
		t.Fatalf("server rename not recorded: %+v", second)
	}

	if _, err := orch.RunOCR(context.Background()); !errors.Is(err, pipeline.ErrStageLocked) {
		t.Fatalf("expected ErrStageLocked on second trigger, got %v", err)
	}
	if labels.ocrCalls != 1 {
		t.Fatalf("expected exactly one remote ocr call, got %d", labels.ocrCalls)
	}
}

func TestRunOCRFailureStillLocks(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg")

	labels.ocrErr = errors.New("backend exploded")
	if _, err := orch.RunOCR(context.Background()); err == nil {
		t.Fatal("expected ocr failure to surface")
	}

	b, err := orch.Current(context.Background())
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if !b.OcrLocked {
		t.Fatal("expected ocr lock to stay engaged after failure")
	}
	if b.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
	if _, err := orch.RunOCR(context.Background()); !errors.Is(err, pipeline.ErrStageLocked) {
		t.Fatalf("expected ErrStageLocked after failed trigger, got %v", err)
	}
}

func TestRunOCRMarksRemoteItemFailures(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "good.jpg", "bad.jpg")

	labels.ocrResults = []labelapi.OcrResult{
		{OriginalFilename: "good.jpg", FormattedName: "Chateau Good"},
		{OriginalFilename: "bad.jpg", Error: "unreadable image"},
	}

	b, err := orch.RunOCR(context.Background())
	if err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}
	bad := b.ItemByID("bad.jpg")
	if bad.Status != batch.StatusFailed || bad.ErrorMessage != "unreadable image" {
		t.Fatalf("per-item failure not recorded: %+v", bad)
	}
	if b.ItemByID("good.jpg").Status != batch.StatusOcrDone {
		t.Fatal("sibling item should still progress")
	}
}

func boolPtr(v bool) *bool { return &v }

func TestRunCompareAppliesPolicy(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "clear.jpg", "fuzzy.jpg", "nolabel.jpg")

	labels.ocrResults = []labelapi.OcrResult{
		{OriginalFilename: "clear.jpg", FormattedName: "Chateau Clear 2018"},
		{OriginalFilename: "fuzzy.jpg", FormattedName: "Chateau Fuzzy"},
		{OriginalFilename: "nolabel.jpg", FormattedName: "No label detected"},
	}
	if _, err := orch.RunOCR(context.Background()); err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}

	labels.compareResults = []labelapi.CompareResult{
		{
			Image: "clear.jpg",
			Matches: labelapi.CompareMatches{
				Orig:  "chateau clear estate grand cru 2018",
				Final: "Chateau Clear 2018",
				Candidates: []labelapi.Candidate{
					{Text: "Chateau Clear 2017", Score: 0.71, Reason: "close vintage"},
					{Text: "Chateau Clear 2018", Score: 0.97, Reason: "exact"},
					{Text: "Clear Estate", Score: 0.40, Reason: "producer"},
					{Text: "Chateau Clair", Score: 0.35, Reason: "spelling"},
				},
				ValidatedGid: "gid://shopify/Product/7",
			},
		},
		{
			Image: "fuzzy.jpg",
			Matches: labelapi.CompareMatches{
				NeedHumanReview: boolPtr(true),
				Candidates:      []labelapi.Candidate{{Text: "Maybe Fuzzy", Score: 0.3, Reason: "weak"}},
			},
		},
		{
			Image: "nolabel.jpg",
			Matches: labelapi.CompareMatches{
				Orig: "No label detected",
				NHR:  boolPtr(true),
			},
		},
	}

	b, err := orch.RunCompare(context.Background())
	if err != nil {
		t.Fatalf("RunCompare returned error: %v", err)
	}
	if !b.CompareLocked {
		t.Fatal("expected compare lock to engage")
	}

	clear := b.ItemByID("clear.jpg").Result
	if len(clear.TopMatches) != 3 {
		t.Fatalf("expected top 3 matches, got %d", len(clear.TopMatches))
	}
	if clear.TopMatches[0].Option != "Chateau Clear 2018" || clear.TopMatches[0].Score != 0.97 {
		t.Fatalf("matches not ranked by score: %+v", clear.TopMatches)
	}
	if clear.SelectedOption != "Chateau Clear 2018" || clear.FinalOutput != "Chateau Clear 2018" {
		t.Fatalf("unexpected selection for confident match: %+v", clear)
	}
	if clear.CorrectionStatus != batch.CorrectionApproved || clear.NeedsReview {
		t.Fatalf("confident match should be approved: %+v", clear)
	}
	if clear.MatchConfidence == nil || *clear.MatchConfidence != 0.97 {
		t.Fatalf("expected top score as confidence, got %v", clear.MatchConfidence)
	}
	if clear.ValidatedGid != "gid://shopify/Product/7" {
		t.Fatalf("validated gid not carried: %+v", clear)
	}
	if clear.OcrText != "chateau clear estate grand cru 2018" {
		t.Fatalf("raw extracted text should replace the ocr placeholder, got %q", clear.OcrText)
	}

	fuzzy := b.ItemByID("fuzzy.jpg").Result
	if fuzzy.SelectedOption != batch.SelectedNHR || fuzzy.FinalOutput != "" {
		t.Fatalf("review item should carry NHR sentinel: %+v", fuzzy)
	}
	if fuzzy.OcrText != "Chateau Fuzzy" {
		t.Fatalf("empty raw text should keep the ocr stage value, got %q", fuzzy.OcrText)
	}
	if fuzzy.CorrectionStatus != batch.CorrectionSearchFailed {
		t.Fatalf("expected search_failed, got %q", fuzzy.CorrectionStatus)
	}

	nolabel := b.ItemByID("nolabel.jpg").Result
	if nolabel.CorrectionStatus != batch.CorrectionOcrFailed {
		t.Fatalf("expected ocr_failed for missing label, got %q", nolabel.CorrectionStatus)
	}
}

func TestRunCompareSkipsFailedItems(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "good.jpg", "bad.jpg")

	labels.ocrResults = []labelapi.OcrResult{
		{OriginalFilename: "good.jpg", FormattedName: "Chateau Good"},
		{OriginalFilename: "bad.jpg", Error: "unreadable image"},
	}
	if _, err := orch.RunOCR(context.Background()); err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}

	labels.compareResults = []labelapi.CompareResult{
		{Image: "good.jpg", Matches: labelapi.CompareMatches{Final: "Chateau Good"}},
	}
	if _, err := orch.RunCompare(context.Background()); err != nil {
		t.Fatalf("RunCompare returned error: %v", err)
	}
	if len(labels.compareIDs) != 1 || labels.compareIDs[0] != "good.jpg" {
		t.Fatalf("expected only surviving item ids, got %v", labels.compareIDs)
	}
}

func TestRunCompareSubmitsItemsMissedByOcr(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg", "b.jpg")

	// Short OCR response: b.jpg stays uploaded with no result.
	labels.ocrResults = []labelapi.OcrResult{
		{OriginalFilename: "a.jpg", FormattedName: "Chateau A"},
	}
	if _, err := orch.RunOCR(context.Background()); err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}

	labels.compareResults = []labelapi.CompareResult{
		{Image: "a.jpg", Matches: labelapi.CompareMatches{Final: "Chateau A"}},
		{Image: "b.jpg", Matches: labelapi.CompareMatches{Final: "Chateau B"}},
	}
	b, err := orch.RunCompare(context.Background())
	if err != nil {
		t.Fatalf("RunCompare returned error: %v", err)
	}
	if len(labels.compareIDs) != 2 {
		t.Fatalf("expected every non-failed id to be submitted, got %v", labels.compareIDs)
	}
	late := b.ItemByID("b.jpg")
	if late.Status != batch.StatusFormatted || late.Result.FinalOutput != "Chateau B" {
		t.Fatalf("item missed by ocr should still be matched: %+v", late)
	}
}

func TestRunCompareRequiresOcr(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg")

	if _, err := orch.RunCompare(context.Background()); !errors.Is(err, pipeline.ErrCompareNotReady) {
		t.Fatalf("expected ErrCompareNotReady, got %v", err)
	}
	if labels.compareCalls != 0 {
		t.Fatal("compare must not reach the backend before ocr completes")
	}
}

func TestCancelGatesTriggers(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg")

	if _, err := orch.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if _, err := orch.RunOCR(context.Background()); !errors.Is(err, pipeline.ErrBatchCancelled) {
		t.Fatalf("expected ErrBatchCancelled, got %v", err)
	}
	if labels.ocrCalls != 0 {
		t.Fatal("cancelled batch must not reach the backend")
	}
}

func TestSelectOptionClearsReview(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "fuzzy.jpg")

	labels.ocrResults = []labelapi.OcrResult{{OriginalFilename: "fuzzy.jpg", FormattedName: "Chateau Fuzzy"}}
	if _, err := orch.RunOCR(context.Background()); err != nil {
		t.Fatalf("RunOCR returned error: %v", err)
	}
	labels.compareResults = []labelapi.CompareResult{
		{Image: "fuzzy.jpg", Matches: labelapi.CompareMatches{NeedHumanReview: boolPtr(true)}},
	}
	if _, err := orch.RunCompare(context.Background()); err != nil {
		t.Fatalf("RunCompare returned error: %v", err)
	}

	item, err := orch.SelectOption(context.Background(), "fuzzy.jpg", "Chateau Fuzzy 2016")
	if err != nil {
		t.Fatalf("SelectOption returned error: %v", err)
	}
	if item.Result.NeedsReview || item.Result.FinalOutput != "Chateau Fuzzy 2016" {
		t.Fatalf("selection not applied: %+v", item.Result)
	}
	if item.Result.CorrectionStatus != batch.CorrectionApproved {
		t.Fatalf("expected approved after selection, got %q", item.Result.CorrectionStatus)
	}
}

func TestRejectValidatesReason(t *testing.T) {
	labels := &fakeLabels{}
	orch, _ := newOrchestrator(t, labels, nil)
	seedUploadedBatch(t, orch, labels, "a.jpg")

	if _, err := orch.Reject(context.Background(), "a.jpg", "because"); err == nil {
		t.Fatal("expected unknown reason to be rejected")
	}

	item, err := orch.Reject(context.Background(), "a.jpg", "")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if item.Result.CorrectionStatus != batch.CorrectionManualRejection {
		t.Fatalf("expected manual_rejection default, got %q", item.Result.CorrectionStatus)
	}
	if item.Result.SelectedOption != batch.SelectedNHR || !item.Result.NeedsReview {
		t.Fatalf("rejection state not applied: %+v", item.Result)
	}
}
