package codec

// Built-in decoders for the telemetry frames the node sends. Both scripts share
// the field readers in decoderPrelude and differ only in their field tables.

const decoderPrelude = `
function u16(r) {
    var v = (r.b[r.i] << 8) | r.b[r.i + 1];
    r.i += 2;
    return v;
}

function i16(r) {
    var v = u16(r);
    return (v & 0x8000) ? v - 0x10000 : v;
}

function u24(r) {
    var v = (r.b[r.i] << 16) | (r.b[r.i + 1] << 8) | r.b[r.i + 2];
    r.i += 3;
    return v;
}

// sign, 7 bit exponent biased by 63, 16 bit mantissa with an explicit leading one
function sflt24(r) {
    var raw = u24(r);
    var neg = (raw & 0x800000) !== 0;
    var exp = (raw >> 16) & 0x7f;
    var man = raw & 0xffff;
    if (exp === 0x7f) {
        if (man === 0)
            return neg ? -Infinity : Infinity;
        return NaN;
    }
    if (exp === 0)
        exp = 1;
    else
        man += 0x10000;
    var v = Math.pow(2, exp - 63) * (man / 0x10000);
    return neg ? -v : v;
}

function volts(r) {
    return i16(r) / 4096;
}

function celsius(r) {
    return i16(r) / 256;
}

function dewPointC(t, rh) {
    var a = 243.04, b = 17.625;
    var h = Math.min(Math.max(rh / 100, 0.01), 1);
    var g = Math.log(h) + (b * t) / (a + t);
    return a * g / (b - g);
}

// NWS heat index. Defined for 76..126 F only; null outside that range or when the
// result is above the published tables.
function heatIndexC(tC, rh) {
    var t = tC * 1.8 + 32;
    var tr = Math.floor(t + 0.5);
    if (tr < 76 || tr > 126 || rh < 0 || rh > 100)
        return null;

    var hi = 0.5 * (t + 61 + (t - 68) * 1.2 + rh * 0.094);
    if (hi + t >= 160) {
        hi = -42.379 + 2.04901523 * t + 10.14333127 * rh
            - 0.22475541 * t * rh - 0.00683783 * t * t
            - 0.05481717 * rh * rh + 0.00122874 * t * t * rh
            + 0.00085282 * t * rh * rh - 0.00000199 * t * t * rh * rh;
        if (rh < 13 && t >= 80 && t <= 112)
            hi -= ((13 - rh) / 4) * Math.sqrt((17 - Math.abs(t - 95)) / 17);
        else if (rh > 85 && t >= 80 && t <= 87)
            hi += ((rh - 85) / 10) * ((87 - t) / 5);
        if (hi >= 183.5)
            return null;
    }
    return (hi - 32) * 5 / 9;
}

function envDerived(out) {
    out.tDewC = dewPointC(out.tempC, out.rh);
    var hi = heatIndexC(out.tempC, out.rh);
    if (hi !== null)
        out.tHeatIndexC = hi;
}

function decodeFrame(fPort, bytes, tag, fields) {
    if (fPort !== 1)
        throw new Error("unexpected port " + fPort);
    if (bytes.length < 2 || bytes[0] !== tag)
        throw new Error("unexpected format " + bytes[0]);

    var r = { b: bytes, i: 2 };
    var flags = bytes[1];
    var out = {};
    for (var bit = 0; bit < 8; bit++) {
        if (!(flags & (1 << bit)))
            continue;
        var f = fields[bit];
        if (!f)
            throw new Error("flag bit " + bit + " has no field");
        if (r.i >= bytes.length)
            throw new Error("frame truncated at bit " + bit);
        f(r, out);
    }
    return out;
}

function vBat(r, out) { out.vBat = volts(r); }
function vBus(r, out) { out.vBus = volts(r); }
function boot(r, out) { out.boot = r.b[r.i++]; }
`

const model4928Script = decoderPrelude + `
var fields = [
    vBat,
    vBus,
    boot,
    function (r, out) {
        out.tempC = celsius(r);
        out.rh = u16(r) * 100 / 65535;
        envDerived(out);
    },
    function (r, out) { out.lux = sflt24(r); },
    function (r, out) { out.tProbeOne = celsius(r); },
    function (r, out) { out.tProbeTwo = celsius(r); }
];

function Decode(fPort, bytes) {
    return decodeFrame(fPort, bytes, 0x2a, fields);
}
`

const catena4610Script = decoderPrelude + `
var fields = [
    vBat,
    vBus,
    boot,
    function (r, out) {
        out.tempC = celsius(r);
        out.pressureHPa = u16(r) * 4 / 100;
        out.rh = r.b[r.i++] * 100 / 256;
        envDerived(out);
    },
    null,
    function (r, out) { out.tWater = celsius(r); }
];

function Decode(fPort, bytes) {
    return decodeFrame(fPort, bytes, 0x22, fields);
}
`

// defaultScripts is keyed by product name.
var defaultScripts = map[string]string{
	"model4928":  model4928Script,
	"catena4610": catena4610Script,
}
