// Package deduplication clusters near-identical flaws with a trainable
// pairwise classifier.
//
// # Overview
//
// Each record is reduced to a flat feature map (see types.Flaw.ToDuplicateFeatures).
// For a configurable list of fields, by default type and description, a
// pair of records is turned into a distance vector: one similarity and one
// missing-indicator per field. A logistic regression maps the vector to a
// match probability.
//
// # Training
//
// Training is active learning. An ActiveLearner proposes the pair the model
// is least sure about as a LabelRequest; a Labeler answers duplicate,
// distinct, unsure or finished. The learner never reads input itself, so
// the same session can be driven by the terminal prompt of the CLI or by a
// scripted oracle in tests:
//
//	learner := deduplication.NewActiveLearner(cfg, records, training)
//	for {
//	    req, ok := learner.Next()
//	    if !ok {
//	        break
//	    }
//	    learner.Mark(req, askSomeone(req))
//	}
//
// Train wraps that loop, then fits the classifier and learns the blocking
// predicates from the labeled duplicates. The resulting Settings and the
// TrainingData are persisted separately, so a later session can extend the
// labels instead of starting over.
//
// # Blocking and clustering
//
// Partition never compares all pairs. Records sharing a key under one of
// the learned predicates (whole value, first token, common token, prefix,
// or a conjunction of two) become candidate pairs and only those are
// scored. The decision threshold maximizes the expected F-score with
// beta = Config.RecallWeight and is never lower than Config.MinThreshold.
// Pairs above the threshold are joined transitively into duplicate-sets.
//
// Within a set the primary is the first member, in corpus order, that is
// not already labeled duplicate. Sets whose members are all labeled
// duplicate have no primary and nothing to mark.
//
// # Configuration
//
// See DefaultConfig and ConfigFromEnv. Without persisted settings the
// engine cannot score and LoadSettings returns ErrNoSettings.
package deduplication
