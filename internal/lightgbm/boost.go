package lightgbm

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tenchu0314/kabu-predictor/internal/contracts"
)

// Dataset is a dense design matrix with binary labels in {0, 1}.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Y) }

// Booster is a trained binary-classification boosting ensemble. The zero-tree
// case degenerates to the constant base-rate model.
type Booster struct {
	InitScore     float64   `json:"init_score"`
	Trees         []Tree    `json:"trees"`
	NumFeatures   int       `json:"num_features"`
	Importance    []float64 `json:"importance"`
	BestIteration int       `json:"best_iteration"`
}

// Train fits a boosted ensemble with Newton steps on the binary log-loss.
// When valid is non-empty and params.EarlyStopping > 0, training stops after
// that many rounds without a validation AUC improvement and the ensemble is
// truncated to the best round.
func Train(params contracts.Hyperparams, train, valid *Dataset, log zerolog.Logger) (*Booster, error) {
	n := train.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty training set", contracts.ErrInsufficientData)
	}
	numFeatures := len(train.X[0])
	if numFeatures == 0 {
		return nil, fmt.Errorf("%w: no feature columns", contracts.ErrInsufficientData)
	}

	numLeaves := params.NumLeaves
	if numLeaves < 2 {
		numLeaves = 2
	}

	booster := &Booster{
		InitScore:   initScore(train.Y),
		NumFeatures: numFeatures,
	}

	rng := rand.New(rand.NewSource(params.Seed))

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = booster.InitScore
	}
	var validScores []float64
	useEarlyStop := valid != nil && valid.Len() > 0 && params.EarlyStopping > 0
	if valid != nil {
		validScores = make([]float64, valid.Len())
		for i := range validScores {
			validScores[i] = booster.InitScore
		}
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	allRows := make([]int, n)
	for i := range allRows {
		allRows[i] = i
	}
	rows := allRows

	bestAUC := math.Inf(-1)
	bestRound := -1
	treeGains := make([][]float64, 0, params.NumIterations)

	for iter := 0; iter < params.NumIterations; iter++ {
		for i := 0; i < n; i++ {
			p := sigmoid(scores[i])
			grad[i] = p - train.Y[i]
			hess[i] = p * (1 - p)
		}

		if params.BaggingFraction < 1 && params.BaggingFreq > 0 && iter%params.BaggingFreq == 0 {
			rows = sampleRows(rng, n, params.BaggingFraction)
		}

		grower := &treeGrower{
			x:               train.X,
			grad:            grad,
			hess:            hess,
			features:        sampleFeatures(rng, numFeatures, params.FeatureFraction),
			numLeaves:       numLeaves,
			maxDepth:        params.MaxDepth,
			minChildSamples: params.MinChildSamples,
			lambdaL1:        params.LambdaL1,
			lambdaL2:        params.LambdaL2,
			shrinkage:       params.LearningRate,
			gains:           make([]float64, numFeatures),
		}
		tree := grower.grow(rows)
		booster.Trees = append(booster.Trees, *tree)
		treeGains = append(treeGains, grower.gains)

		for i := 0; i < n; i++ {
			scores[i] += tree.Predict(train.X[i])
		}
		for i := range validScores {
			validScores[i] += tree.Predict(valid.X[i])
		}

		if useEarlyStop {
			probs := make([]float64, len(validScores))
			for i, s := range validScores {
				probs[i] = sigmoid(s)
			}
			auc := AUC(valid.Y, probs)
			if auc > bestAUC {
				bestAUC = auc
				bestRound = iter
			} else if iter-bestRound >= params.EarlyStopping {
				log.Debug().
					Int("iteration", iter+1).
					Int("best_iteration", bestRound+1).
					Float64("best_auc", bestAUC).
					Msg("early stopping")
				break
			}
		}
	}

	kept := len(booster.Trees)
	if useEarlyStop && bestRound >= 0 {
		kept = bestRound + 1
	}
	booster.Trees = booster.Trees[:kept]
	booster.BestIteration = kept

	booster.Importance = make([]float64, numFeatures)
	for _, gains := range treeGains[:kept] {
		for f, gain := range gains {
			booster.Importance[f] += gain
		}
	}

	return booster, nil
}

// Predict returns the positive-class probability for one feature vector.
func (b *Booster) Predict(x []float64) float64 {
	score := b.InitScore
	for i := range b.Trees {
		score += b.Trees[i].Predict(x)
	}
	return sigmoid(score)
}

// PredictBatch returns positive-class probabilities for every row.
func (b *Booster) PredictBatch(x [][]float64) []float64 {
	probs := make([]float64, len(x))
	for i, row := range x {
		probs[i] = b.Predict(row)
	}
	return probs
}

// AUC is the Mann-Whitney rank estimate of the ROC area, with tied
// predictions contributing half. Returns NaN when either class is absent.
func AUC(labels, probs []float64) float64 {
	type pair struct {
		prob  float64
		label float64
	}
	pairs := make([]pair, len(labels))
	var positives, negatives int
	for i := range labels {
		pairs[i] = pair{prob: probs[i], label: labels[i]}
		if labels[i] > 0.5 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return math.NaN()
	}

	sort.Slice(pairs, func(a, b int) bool { return pairs[a].prob < pairs[b].prob })

	// Average rank within tie groups, then sum ranks of positives.
	var posRankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].prob == pairs[i].prob {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].label > 0.5 {
				posRankSum += avgRank
			}
		}
		i = j
	}

	u := posRankSum - float64(positives)*float64(positives+1)/2
	return u / (float64(positives) * float64(negatives))
}

func initScore(y []float64) float64 {
	var sum float64
	for _, v := range y {
		sum += v
	}
	p := clampProb(sum / float64(len(y)))
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func sampleRows(rng *rand.Rand, n int, fraction float64) []int {
	k := int(math.Ceil(fraction * float64(n)))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	return perm
}

func sampleFeatures(rng *rand.Rand, total int, fraction float64) []int {
	if fraction >= 1 {
		all := make([]int, total)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := int(math.Ceil(fraction * float64(total)))
	if k < 1 {
		k = 1
	}
	return rng.Perm(total)[:k]
}
