package repository

import (
	"context"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/entity"
)

func TestRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Repository Suite")
}

var _ = Describe("ReceiptRepository", func() {
	var (
		ctx  context.Context
		db   *DB
		repo ReceiptRepository
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = Open(ctx, Config{
			DSN: filepath.Join(GinkgoT().TempDir(), "receipts.sqlite3"),
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = db.Close() })

		Expect(EnsureSchema(ctx, db, nil)).To(Succeed())
		repo = NewReceiptRepository(db, nil)
	})

	record := func(sha string) *entity.ReceiptRecord {
		merchant := "WALMART"
		date := "01/02/2024"
		total := 12.0
		currency := "USD"
		return &entity.ReceiptRecord{
			SourceSHA:   sha,
			SourcePath:  "/tmp/receipt.jpg",
			Merchant:    &merchant,
			ReceiptDate: &date,
			TotalAmount: &total,
			Currency:    &currency,
			OCRText:     "WALMART\nTOTAL 12.00",
			OCRJSON:     []byte(`{"lines":[]}`),
			DUJSON:      []byte(`{"extracted":{}}`),
			MetaJSON:    []byte(`{"source_sha":"` + sha + `"}`),
		}
	}

	Describe("Upsert", func() {
		It("inserts a new record and reports it as inserted", func() {
			res, err := repo.Upsert(ctx, record("sha-1"))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(BeTrue())
			Expect(res.Outcome()).To(Equal("inserted"))
			Expect(res.ID).To(BeNumerically(">", 0))
		})

		It("updates on a repeated digest and keeps the same id", func() {
			first, err := repo.Upsert(ctx, record("sha-1"))
			Expect(err).NotTo(HaveOccurred())

			rec := record("sha-1")
			merchant := "WALMART SUPERCENTER"
			rec.Merchant = &merchant

			second, err := repo.Upsert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Inserted).To(BeFalse())
			Expect(second.Outcome()).To(Equal("updated"))
			Expect(second.ID).To(Equal(first.ID))

			got, err := repo.GetByID(ctx, second.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.Merchant).To(Equal("WALMART SUPERCENTER"))
		})

		It("keeps the stored source_path when the update carries none", func() {
			res, err := repo.Upsert(ctx, record("sha-1"))
			Expect(err).NotTo(HaveOccurred())

			rec := record("sha-1")
			rec.SourcePath = ""
			_, err = repo.Upsert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.GetByID(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SourcePath).To(Equal("/tmp/receipt.jpg"))
		})

		It("rejects a record without a digest and writes nothing", func() {
			rec := record("")
			_, err := repo.Upsert(ctx, rec)
			Expect(err).To(HaveOccurred())
			Expect(common.IsCode(err, common.CodeMissingDigest)).To(BeTrue())

			recs, err := repo.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
		})
	})

	Describe("List", func() {
		It("returns summaries newest-first", func() {
			for _, sha := range []string{"sha-1", "sha-2", "sha-3"} {
				_, err := repo.Upsert(ctx, record(sha))
				Expect(err).NotTo(HaveOccurred())
			}

			recs, err := repo.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(3))
			Expect(recs[0].ID).To(BeNumerically(">", recs[1].ID))
			Expect(recs[1].ID).To(BeNumerically(">", recs[2].ID))
		})

		It("honors the limit", func() {
			for _, sha := range []string{"sha-1", "sha-2", "sha-3"} {
				_, err := repo.Upsert(ctx, record(sha))
				Expect(err).NotTo(HaveOccurred())
			}

			recs, err := repo.List(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(2))
		})

		It("carries null fields through as nil pointers", func() {
			rec := record("sha-1")
			rec.Merchant = nil
			rec.TotalAmount = nil
			_, err := repo.Upsert(ctx, rec)
			Expect(err).NotTo(HaveOccurred())

			recs, err := repo.List(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs[0].Merchant).To(BeNil())
			Expect(recs[0].TotalAmount).To(BeNil())
			Expect(recs[0].Currency).NotTo(BeNil())
		})
	})

	Describe("GetByID", func() {
		It("returns the full record including the JSON blobs", func() {
			res, err := repo.Upsert(ctx, record("sha-1"))
			Expect(err).NotTo(HaveOccurred())

			got, err := repo.GetByID(ctx, res.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.SourceSHA).To(Equal("sha-1"))
			Expect(got.OCRText).To(Equal("WALMART\nTOTAL 12.00"))
			Expect(string(got.DUJSON)).To(Equal(`{"extracted":{}}`))
			Expect(got.CreatedAt).NotTo(BeEmpty())
		})

		It("fails with NOT_FOUND for an unknown id", func() {
			_, err := repo.GetByID(ctx, 9999)
			Expect(err).To(HaveOccurred())
			Expect(common.IsCode(err, common.CodeNotFound)).To(BeTrue())
		})
	})
})
