// Package dkg implements a Feldman verifiable distributed key generation
// and the threshold opening of points encrypted to the resulting key.
package dkg

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
	"github.com/phantomstreams/phantom-sequencer/log"
)

// Participant represents a participant in the DKG protocol.
type Participant struct {
	ID             int
	Threshold      int
	Participants   []int
	SecretCoeffs   []*big.Int
	PublicCoeffs   []ecc.Point
	SecretShares   map[int]*big.Int
	ReceivedShares map[int]*big.Int
	PrivateShare   *big.Int
	PublicKey      ecc.Point
	CurvePoint     ecc.Point
}

// NewParticipant initializes a new participant. Identifiers must be
// positive, since the share for x = 0 is the secret itself.
func NewParticipant(id int, threshold int, participants []int, curvePoint ecc.Point) (*Participant, error) {
	if id <= 0 {
		return nil, fmt.Errorf("invalid participant id %d", id)
	}
	if threshold < 1 || threshold > len(participants) {
		return nil, fmt.Errorf("invalid threshold %d for %d participants", threshold, len(participants))
	}
	return &Participant{
		ID:             id,
		Threshold:      threshold,
		Participants:   participants,
		SecretCoeffs:   []*big.Int{},
		PublicCoeffs:   []ecc.Point{},
		SecretShares:   make(map[int]*big.Int),
		ReceivedShares: make(map[int]*big.Int),
		PrivateShare:   new(big.Int),
		CurvePoint:     curvePoint,
	}, nil
}

// GenerateSecretPolynomial samples a random polynomial of degree
// threshold-1 and commits to its coefficients.
func (p *Participant) GenerateSecretPolynomial() error {
	degree := p.Threshold - 1
	for i := 0; i <= degree; i++ {
		coeff, err := rand.Int(rand.Reader, p.CurvePoint.Order())
		if err != nil {
			return fmt.Errorf("cannot sample coefficient: %w", err)
		}
		p.SecretCoeffs = append(p.SecretCoeffs, coeff)

		commitment := p.CurvePoint.New()
		commitment.ScalarBaseMult(coeff)
		p.PublicCoeffs = append(p.PublicCoeffs, commitment)
	}
	return nil
}

// ComputeShares computes shares to send to other participants.
func (p *Participant) ComputeShares() {
	for _, pid := range p.Participants {
		p.SecretShares[pid] = p.evaluatePolynomial(big.NewInt(int64(pid)))
	}
}

// evaluatePolynomial evaluates the secret polynomial at a given x.
func (p *Participant) evaluatePolynomial(x *big.Int) *big.Int {
	result := big.NewInt(0)
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, coeff := range p.SecretCoeffs {
		term := new(big.Int).Mul(coeff, xPower)
		term.Mod(term, order)
		result.Add(result, term)
		result.Mod(result, order)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return result
}

// ReceiveShare receives a share from another participant.
func (p *Participant) ReceiveShare(fromID int, share *big.Int, publicCoeffs []ecc.Point) error {
	if !p.verifyShare(share, publicCoeffs) {
		return fmt.Errorf("invalid share from participant %d", fromID)
	}
	p.ReceivedShares[fromID] = share
	return nil
}

// verifyShare checks share*G against the committed polynomial evaluated at
// the participant id.
func (p *Participant) verifyShare(share *big.Int, publicCoeffs []ecc.Point) bool {
	if len(publicCoeffs) != p.Threshold {
		return false
	}
	lhs := p.CurvePoint.New()
	lhs.ScalarBaseMult(share)

	rhs := p.CurvePoint.New()
	x := big.NewInt(int64(p.ID))
	xPower := big.NewInt(1)
	order := p.CurvePoint.Order()
	for _, coeffCommitment := range publicCoeffs {
		term := p.CurvePoint.New()
		term.ScalarMult(coeffCommitment, xPower)
		rhs.Add(rhs, term)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, order)
	}
	return lhs.Equal(rhs)
}

// AggregateShares aggregates the received shares to compute the private share.
func (p *Participant) AggregateShares() {
	order := p.CurvePoint.Order()
	p.PrivateShare.Set(p.SecretShares[p.ID])
	for _, share := range p.ReceivedShares {
		p.PrivateShare.Add(p.PrivateShare, share)
		p.PrivateShare.Mod(p.PrivateShare, order)
	}
}

// AggregatePublicKey aggregates the public commitments to compute the public key.
func (p *Participant) AggregatePublicKey(allPublicCoeffs map[int][]ecc.Point) {
	pk := p.CurvePoint.New()
	for _, coeffs := range allPublicCoeffs {
		pk.Add(pk, coeffs[0]) // only the constant term
	}
	p.PublicKey = pk
	log.Debugw("participant public key aggregated", "id", p.ID, "publicKey", pk.String())
}

// Run executes a full in-process ceremony for participants 1..n and returns
// them indexed by id, all holding the same public key.
func Run(curve ecc.Point, threshold, n int) (map[int]*Participant, error) {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	participants := make(map[int]*Participant, n)
	for _, id := range ids {
		p, err := NewParticipant(id, threshold, ids, curve.New())
		if err != nil {
			return nil, err
		}
		if err := p.GenerateSecretPolynomial(); err != nil {
			return nil, err
		}
		p.ComputeShares()
		participants[id] = p
	}
	allPublicCoeffs := make(map[int][]ecc.Point, n)
	for id, p := range participants {
		allPublicCoeffs[id] = p.PublicCoeffs
	}
	for _, p := range participants {
		for _, other := range participants {
			if other.ID == p.ID {
				continue
			}
			if err := p.ReceiveShare(other.ID, other.SecretShares[p.ID], other.PublicCoeffs); err != nil {
				return nil, err
			}
		}
		p.AggregateShares()
		p.AggregatePublicKey(allPublicCoeffs)
	}
	log.Infow("distributed key generation completed",
		"curve", curve.Type(),
		"participants", n,
		"threshold", threshold,
		"publicKey", participants[1].PublicKey.String())
	return participants, nil
}
