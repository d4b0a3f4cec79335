// Package views renders the game page and its live status fragment.
package views

// pageScript drives the page: buttons post to the API and the event stream
// swaps in each new status fragment.
const pageScript = `<script>
(function(){
  var roundMs = parseInt(document.body.dataset.roundMs, 10) || 0;
  function post(url, body){
    return fetch(url, {method:"POST", headers:{"Content-Type":"application/json"}, body: body ? JSON.stringify(body) : null});
  }
  document.querySelectorAll("[data-action]").forEach(function(b){
    b.addEventListener("click", function(){ post(b.dataset.action); });
  });
  document.querySelectorAll("[data-smile]").forEach(function(b){
    b.addEventListener("click", function(){
      var frames = [];
      for (var i = 0; i < 20; i++) frames.push({faces:[{smile:parseFloat(b.dataset.smile)}]});
      post("/api/frames", {frames: frames});
    });
  });
  var es = new EventSource("/api/stream");
  es.addEventListener("status", function(e){ document.getElementById("status").innerHTML = e.data; });
  es.addEventListener("view", function(e){
    var v = JSON.parse(e.data);
    document.getElementById("start").disabled = !v.can_start;
    document.getElementById("reset").disabled = !v.can_reset;
    document.title = v.state_label || "LaughGame (" + Math.round(roundMs/1000) + "s rounds)";
  });
})();
</script>`
