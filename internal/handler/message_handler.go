package handler

import (
	"github.com/pkg/errors"

	"github.com/elfrances/grs/config"
	"github.com/elfrances/grs/internal/logger"
	"github.com/elfrances/grs/internal/protocol"
	"github.com/elfrances/grs/internal/registry"
)

var log = logger.GetLogger()

type messageHandler struct {
	conf     *config.Config
	registry registry.RiderRegistry
}

func NewMessageHandler(conf *config.Config, reg registry.RiderRegistry) MessageHandler {
	return &messageHandler{
		conf:     conf,
		registry: reg,
	}
}

func (mh *messageHandler) HandleMessage(riderID string, payload []byte) error {
	msg, ok := protocol.Decode(payload)
	if !ok {
		return errors.Errorf("no message object found in payload of %d bytes", len(payload))
	}

	switch msg.Kind {
	case protocol.KindRegReq:
		return mh.handleRegReq(riderID, msg)
	case protocol.KindProgUpd:
		mh.handleProgUpd(riderID, msg)
		return nil
	case "":
		return errors.New("message has no type")
	default:
		// Unknown kinds are logged and ignored; the client may still
		// recover by sending a correct message later.
		log.Errorf("[%s] Unsupported message type %q", riderID, msg.Kind)
		return nil
	}
}

/* --- PRIVATE METHODS --- */

// handleRegReq processes a Registration Request message:
//
//	{"type": "regReq", "name": "<RidersName>",
//	 "gender": "{female|male|unspec}", "age": "<RidersAge>",
//	 "ride": "<RideName>"}
//
// On success the rider gets a regResp reply with its bib number and the
// ride's pass-through content. Rejections leave the connection open and
// send nothing.
func (mh *messageHandler) handleRegReq(riderID string, msg protocol.Message) error {
	ride, ok := msg.Field("ride")
	if !ok {
		log.Errorf("[%s] regReq: no ride name specified", riderID)
		return nil
	}

	name, _ := msg.Field("name")
	genderVal, _ := msg.Field("gender")
	age, _ := msg.IntField("age")

	rider, err := mh.registry.Register(riderID, name, registry.GenderFromWire(genderVal), age, ride)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrWrongRide):
			log.Errorf("[%s] regReq: invalid ride name %q", riderID, ride)
		case errors.Is(err, registry.ErrInvalidState):
			log.Errorf("[%s] regReq: invalid state", riderID)
		default:
			log.Errorf("[%s] regReq: %v", riderID, err)
		}
		return nil
	}

	resp := protocol.EncodeRegResp(
		rider.BibNum,
		mh.conf.StartTimeEpoch(),
		mh.conf.ControlFile,
		mh.conf.VideoFile,
		int(mh.conf.ProgUpdatePeriod.Seconds()),
	)
	if err := rider.Conn.SendData(resp); err != nil {
		return errors.Wrap(err, "failed to send regResp")
	}

	log.Infof("action: registration | result: success | rider: %s | name: %s | gender: %s | age: %d | bibNum: %d | category: %s",
		riderID, rider.Name, rider.Gender, rider.Age, rider.BibNum, rider.Category().Label())

	return nil
}

// handleProgUpd processes a Progress Update message:
//
//	{"type": "progUpd", "distance": "<Meters>", "power": "<Watts>",
//	 "speed": "<MetersPerSec>"}
//
// The speed field is accepted and ignored. Missing or unparsable
// numerics leave the corresponding reading unchanged.
func (mh *messageHandler) handleProgUpd(riderID string, msg protocol.Message) {
	rider, ok := mh.registry.GetRider(riderID)
	if !ok {
		log.Errorf("[%s] progUpd: unknown rider", riderID)
		return
	}

	distance, hasDistance := msg.IntField("distance")
	if !hasDistance {
		log.Errorf("[%s] progUpd: no distance specified", riderID)
		distance = rider.Distance
	}
	power, hasPower := msg.IntField("power")
	if !hasPower {
		log.Errorf("[%s] progUpd: no power specified", riderID)
		power = rider.Power
	}

	if err := mh.registry.RecordProgress(riderID, distance, power); err != nil {
		switch {
		case errors.Is(err, registry.ErrRideNotStarted):
			log.Errorf("[%s] progUpd: group ride is not active", riderID)
		case errors.Is(err, registry.ErrInvalidState):
			log.Errorf("[%s] progUpd: invalid state %s", riderID, rider.State)
		default:
			log.Errorf("[%s] progUpd: %v", riderID, err)
		}
		return
	}

	log.Debugf("[%s] progUpd: name=%s distance=%d power=%d", riderID, rider.Name, rider.Distance, rider.Power)
}
