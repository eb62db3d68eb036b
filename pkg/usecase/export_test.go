package usecase

// Export unexported functions for testing
var (
	GroupDuplicatesForTest             = groupDuplicates
	NormalizeRepoNameForTest           = normalizeRepoName
	CreateOrUpdateBigQueryTableForTest = createOrUpdateBigQueryTable
)
