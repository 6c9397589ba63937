/*
Package quality scores the data quality of records.

Every record gets six scores between 0 and 100:

	completeness  populated fields among present and expected fields
	accuracy      email, phone, URL and date formats implied by field names
	consistency   formatting conventions, minus a penalty per deviation
	validity      identifiers, statuses and numeric ranges
	uniqueness    delegated to a UniquenessOracle
	timeliness    age since creation and last modification

and a weighted overall score. Weights and thresholds come from the entity
type's Profile, or DefaultProfile. A score below its threshold is a
warning; below Config.ErrorRatio of the threshold it is an error.

Validation performs no lookups. Without an oracle every record scores
DefaultUniqueness; GenerateReport scores uniqueness within its batch with a
BatchUniqueness.

# Exploration

DetectDuplicates and Validator.ProfileData are reporting tools and never
reject records:

	pairs, err := quality.DetectDuplicates(records, quality.DuplicateConfig{
		Fields:     []string{"name", "address.city"},
		Algorithms: []quality.Algorithm{quality.AlgorithmJaccard},
		Threshold:  0.8,
		IDField:    "id",
	})
*/
package quality
